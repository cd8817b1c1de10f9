package protocol

import (
	"encoding/binary"
	"hash/crc32"
)

// Checksum returns the CRC-32 (IEEE polynomial, as used by zlib/gzip) of
// data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// frameChecksum computes the checksum a frame must carry: CRC-32 over the
// control/status byte and everything past the checksum field, i.e. over the
// whole frame except the checksum itself.
func frameChecksum(frame []byte) uint32 {
	h := crc32.NewIEEE()
	_, _ = h.Write(frame[:StatusSize])
	_, _ = h.Write(frame[HeaderSize:])
	return h.Sum32()
}

// Stamp computes the frame checksum and stores it big-endian at bytes 1..4.
// The frame must already contain its control byte, payload and filler.
func Stamp(frame []byte) {
	binary.BigEndian.PutUint32(frame[StatusSize:HeaderSize], frameChecksum(frame))
}

// Verify recomputes a framed buffer's checksum and compares it with the
// stored field. Pure function; a mismatch is a recoverable channel
// condition, never fatal by itself.
func Verify(frame []byte) bool {
	if len(frame) < HeaderSize {
		return false
	}
	return binary.BigEndian.Uint32(frame[StatusSize:HeaderSize]) == frameChecksum(frame)
}
