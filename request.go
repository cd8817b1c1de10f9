package mculink

import "encoding/binary"

// Request descriptor of the device family: a 7-byte header the caller
// embeds ahead of its payload, [op][addr uint32 BE][len uint16 BE]. On
// writes it rides in the header reserve of the first block; on reads it is
// the whole read-info payload.
const (
	OpRead  byte = 0x01
	OpWrite byte = 0x02
)

const DescriptorSize = 7

// WriteRequest prefixes data with a write descriptor targeting addr.
func WriteRequest(addr uint32, data []byte) []byte {
	out := make([]byte, DescriptorSize+len(data))
	out[0] = OpWrite
	binary.BigEndian.PutUint32(out[1:5], addr)
	binary.BigEndian.PutUint16(out[5:7], uint16(len(data)))
	copy(out[DescriptorSize:], data)
	return out
}

// ReadRequest builds a read descriptor for length bytes at addr.
func ReadRequest(addr uint32, length int) []byte {
	out := make([]byte, DescriptorSize)
	out[0] = OpRead
	binary.BigEndian.PutUint32(out[1:5], addr)
	binary.BigEndian.PutUint16(out[5:7], uint16(length))
	return out
}
