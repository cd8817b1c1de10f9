package protocol

import "errors"

var (
	// ErrFrameAlignment reports a response whose total length is not a
	// multiple of the packet granularity. Transport-level corruption
	// beyond what the checksum retries can recover.
	ErrFrameAlignment = errors.New("frame length is not packet aligned")

	// ErrChecksum reports a checksum miscompare detected on the host side.
	ErrChecksum = errors.New("frame checksum mismatch")

	// ErrFrameShort reports a response too short to carry the expected
	// payload.
	ErrFrameShort = errors.New("frame shorter than expected payload")
)
