package protocol

import (
	"fmt"
	"time"
)

// Params describes the transfer geometry and retry budgets of one device
// family. The zero value is not usable; start from DefaultParams.
type Params struct {
	// BufferSize is the device's internal RX/TX buffer in bytes.
	BufferSize int `yaml:"buffer_size"`
	// PacketSize is the device's internal packet granularity; every framed
	// block is padded to a multiple of it.
	PacketSize int `yaml:"packet_size"`
	// SegmentSize caps what the underlying transport carries in one send.
	SegmentSize int `yaml:"segment_size"`
	// HeaderReserve is the number of opcode bytes the caller embeds at the
	// start of its own payload; the first block may carry that many bytes
	// on top of BufferSize.
	HeaderReserve int `yaml:"header_reserve"`
	// WindowSize is the number of segments sent back-to-back between
	// check/verify cycles on the write path.
	WindowSize int `yaml:"window_size"`

	BusyRetryMax int `yaml:"busy_retry_max"`
	CrcRetryMax  int `yaml:"crc_retry_max"`

	// NotifyTimeout bounds every wait for an asynchronous delivery.
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

func DefaultParams() Params {
	return Params{
		BufferSize:    1024,
		PacketSize:    64,
		SegmentSize:   512,
		HeaderReserve: 7,
		WindowSize:    3,
		BusyRetryMax:  3,
		CrcRetryMax:   3,
		NotifyTimeout: 7 * time.Second,
	}
}

func (p Params) Validate() error {
	if p.PacketSize <= 0 {
		return fmt.Errorf("packet size must be positive, got %d", p.PacketSize)
	}
	if p.PacketSize < HeaderSize+1 {
		return fmt.Errorf("packet size %d cannot hold the frame header", p.PacketSize)
	}
	if p.BufferSize <= 0 || p.BufferSize%p.PacketSize != 0 {
		return fmt.Errorf("buffer size %d is not a multiple of packet size %d", p.BufferSize, p.PacketSize)
	}
	if p.SegmentSize <= 0 || p.SegmentSize%p.PacketSize != 0 {
		return fmt.Errorf("segment size %d is not a multiple of packet size %d", p.SegmentSize, p.PacketSize)
	}
	if p.HeaderReserve < 0 {
		return fmt.Errorf("header reserve cannot be negative, got %d", p.HeaderReserve)
	}
	if p.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", p.WindowSize)
	}
	if p.BusyRetryMax < 0 || p.CrcRetryMax < 0 {
		return fmt.Errorf("retry budgets cannot be negative")
	}
	if p.NotifyTimeout <= 0 {
		return fmt.Errorf("notification timeout must be positive, got %s", p.NotifyTimeout)
	}
	return nil
}

// PaddingSize returns how many filler bytes align length up to the packet
// granularity. Zero when length is already aligned, never a full packet.
func (p Params) PaddingSize(length int) int {
	rest := length % p.PacketSize
	if rest == 0 {
		return 0
	}
	return p.PacketSize - rest
}

// FrameSize returns the total framed length of a block carrying the given
// number of payload bytes: header, payload and alignment filler.
func (p Params) FrameSize(payload int) int {
	return HeaderSize + payload + p.PaddingSize(HeaderSize+payload)
}

// DeliveryCount returns how many asynchronous deliveries must be awaited to
// cover one read cycle's response when remaining payload bytes are still
// needed. The device returns min(remaining, BufferSize) bytes per cycle.
func (p Params) DeliveryCount(remaining int) int {
	usable := remaining
	if usable > p.BufferSize {
		usable = p.BufferSize
	}
	frame := p.FrameSize(usable)
	return (frame + p.SegmentSize - 1) / p.SegmentSize
}
