package protocol

import "fmt"

// Reassembler accumulates the asynchronous deliveries of one read cycle
// into a single framed buffer and recovers the payload bytes it carries.
// Reset between cycles; not safe for concurrent use.
type Reassembler struct {
	params Params
	buf    []byte
}

func NewReassembler(params Params) *Reassembler {
	return &Reassembler{params: params}
}

func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}

// Add appends one delivery to the cycle's buffer. The delivery is copied.
func (r *Reassembler) Add(delivery []byte) {
	r.buf = append(r.buf, delivery...)
}

func (r *Reassembler) Len() int { return len(r.buf) }

// Frame exposes the assembled frame for status inspection.
func (r *Reassembler) Frame() []byte { return r.buf }

// Status returns the status byte of the assembled frame.
func (r *Reassembler) Status() byte {
	if len(r.buf) == 0 {
		return StatusOK
	}
	return r.buf[0]
}

// Validate checks the structural integrity of the assembled frame: packet
// alignment first, then the checksum. Alignment failures are fatal to the
// transfer; checksum failures are retryable by the caller.
func (r *Reassembler) Validate() error {
	if len(r.buf) == 0 || len(r.buf)%r.params.PacketSize != 0 {
		return fmt.Errorf("%w: got %d bytes", ErrFrameAlignment, len(r.buf))
	}
	if !Verify(r.buf) {
		return ErrChecksum
	}
	return nil
}

// Extract strips the header and trailing filler from a validated frame and
// returns the usable payload bytes. usable must be what the device was
// expected to return for the cycle, min(remaining, BufferSize); the frame
// has no end-of-data marker of its own.
func (r *Reassembler) Extract(usable int) ([]byte, error) {
	if len(r.buf) < HeaderSize+usable {
		return nil, fmt.Errorf("%w: frame %d bytes, expected %d usable", ErrFrameShort, len(r.buf), usable)
	}
	out := make([]byte, usable)
	copy(out, r.buf[HeaderSize:HeaderSize+usable])
	return out, nil
}
