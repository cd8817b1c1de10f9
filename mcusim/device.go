// Package mcusim provides an in-memory implementation of the device side
// of the transfer protocol. It stands in for real hardware in tests and in
// the CLI loopback command: the host client talks to it through the
// regular transport interface, deliveries come back asynchronously, and
// faults (busy streaks, corrupted responses, dropped deliveries) can be
// injected per scenario.
package mcusim

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/mculink"
	"github.com/mklimuk/mculink/protocol"
)

type writeState struct {
	addr     uint32
	total    int // payload bytes including the descriptor
	consumed int
}

type readState struct {
	addr   uint32
	total  int
	offset int
	// served is the size of the last chunk sent, so a retried read cycle
	// can rewind and re-serve it.
	served int
}

// Device simulates the microcontroller endpoint. It implements
// mculink.Transport; every Send feeds its receive path and responses are
// delivered asynchronously through the configured delivery callback.
//
// The simulation assumes the host's window covers whole blocks, which
// holds whenever the window spans at least one device buffer (the default
// geometry: 3 segments of 512 against a 1088-byte framed block).
type Device struct {
	mx      sync.Mutex
	params  protocol.Params
	framer  *protocol.Framer
	deliver mculink.DeliveryFunc
	memory  []byte

	rx    []byte
	write *writeState
	read  *readState

	// fault injection
	busyLeft    int
	busyAlways  bool
	corruptSkip int
	corruptLeft int
	dropNext    int
	rejectSend  bool
	offline     bool
	cmdErrNext  bool
	forceStatus *byte

	latency time.Duration

	// counters for assertions
	checks int
	reads  int
	blocks int
	hints  int
}

var _ mculink.Transport = (*Device)(nil)

// New creates a device with the given addressable memory size.
func New(params protocol.Params, memSize int) *Device {
	return &Device{
		params: params,
		framer: protocol.NewFramer(params),
		memory: make([]byte, memSize),
	}
}

// Connect registers the host's delivery callback. Must be called before
// any transfer.
func (d *Device) Connect(deliver mculink.DeliveryFunc) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.deliver = deliver
}

func (d *Device) Reachable(ctx context.Context) bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return !d.offline && d.deliver != nil
}

// Send feeds one wire segment into the device. Command frames trigger an
// asynchronous response; data segments accumulate until the next CHECK.
func (d *Device) Send(ctx context.Context, segment []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.rejectSend {
		return mculink.ErrSendRejected
	}
	if len(segment) == 0 || len(segment) > d.params.SegmentSize {
		return fmt.Errorf("segment size %d out of range", len(segment))
	}
	if d.isCommand(segment) && (len(d.rx) == 0 || protocol.Verify(segment)) {
		d.handleCommand(append([]byte(nil), segment...))
		return nil
	}
	d.rx = append(d.rx, segment...)
	return nil
}

// isCommand reports whether a segment is shaped like a CHECK or READ
// command frame rather than a write block segment. With data buffered the
// caller additionally requires a valid checksum before treating it as a
// command, so a block's trailing packet cannot be mistaken for one.
func (d *Device) isCommand(segment []byte) bool {
	if len(segment) != d.params.FrameSize(0) {
		return false
	}
	ctrl := segment[0] &^ protocol.FlagCrcRetry
	return ctrl == protocol.CtrlCheck || ctrl == protocol.CtrlRead
}

func (d *Device) handleCommand(frame []byte) {
	if frame[0]&protocol.FlagCrcRetry != 0 {
		d.hints++
	}
	ctrl := frame[0] &^ protocol.FlagCrcRetry
	if !protocol.Verify(frame) {
		d.respondStatus(protocol.StatusCrcError)
		return
	}
	switch ctrl {
	case protocol.CtrlCheck:
		d.checks++
		d.handleCheck()
	case protocol.CtrlRead:
		d.reads++
		d.handleRead(frame[0]&protocol.FlagCrcRetry != 0)
	}
}

func (d *Device) handleCheck() {
	if d.busyAlways || d.busyLeft > 0 {
		if d.busyLeft > 0 {
			d.busyLeft--
		}
		d.respondStatus(protocol.StatusBusy)
		return
	}
	if d.cmdErrNext {
		d.cmdErrNext = false
		d.respondStatus(protocol.StatusCmdError)
		return
	}
	if d.forceStatus != nil {
		status := *d.forceStatus
		d.forceStatus = nil
		d.respondStatus(status)
		return
	}
	if len(d.rx) == 0 {
		d.respondStatus(protocol.StatusOK)
		return
	}
	d.respondStatus(d.commitBlock())
}

// commitBlock validates the buffered framed block and applies it to the
// write session. The buffer is consumed either way; a rejected block is
// retransmitted by the host.
func (d *Device) commitBlock() byte {
	frame := d.rx
	d.rx = nil
	if len(frame)%d.params.PacketSize != 0 {
		return protocol.StatusCmdError
	}
	if frame[0]&protocol.FlagCrcRetry != 0 {
		d.hints++
	}
	if ctrl := frame[0] &^ protocol.FlagCrcRetry; ctrl != protocol.CtrlWrite {
		return protocol.StatusCmdError
	}
	if !protocol.Verify(frame) {
		return protocol.StatusCrcError
	}
	payload := frame[protocol.HeaderSize:]
	if d.write == nil {
		// first block of a write session: the descriptor rides at the
		// start of the payload
		if len(payload) < mculink.DescriptorSize || payload[0] != mculink.OpWrite {
			// not a data write: a read-info descriptor frame
			return d.acceptDescriptor(payload)
		}
		d.write = &writeState{
			addr:  binary.BigEndian.Uint32(payload[1:5]),
			total: mculink.DescriptorSize + int(binary.BigEndian.Uint16(payload[5:7])),
		}
	}
	w := d.write
	capacity := d.params.BufferSize
	if w.consumed == 0 {
		capacity += d.params.HeaderReserve
	}
	expect := w.total - w.consumed
	if expect > capacity {
		expect = capacity
	}
	if len(payload) < expect {
		return protocol.StatusCmdError
	}
	block := payload[:expect]
	if w.consumed == 0 {
		block = block[mculink.DescriptorSize:]
		copy(d.memory[w.addr:], block)
	} else {
		copy(d.memory[int(w.addr)+w.consumed-mculink.DescriptorSize:], block)
	}
	w.consumed += expect
	d.blocks++
	if w.consumed >= w.total {
		d.write = nil
	}
	return protocol.StatusOK
}

// acceptDescriptor handles a read-info frame: a short command write whose
// payload is the read descriptor.
func (d *Device) acceptDescriptor(payload []byte) byte {
	if len(payload) < mculink.DescriptorSize || payload[0] != mculink.OpRead {
		return protocol.StatusCmdError
	}
	d.read = &readState{
		addr:  binary.BigEndian.Uint32(payload[1:5]),
		total: int(binary.BigEndian.Uint16(payload[5:7])),
	}
	return protocol.StatusOK
}

// handleRead serves one read cycle. A retried cycle arrives with the CRC
// retry hint set; the host rejected the previous response, so the same
// chunk is served again instead of advancing.
func (d *Device) handleRead(hinted bool) {
	if d.read == nil {
		d.respondStatus(protocol.StatusCmdError)
		return
	}
	r := d.read
	if hinted {
		r.offset -= r.served
	}
	usable := r.total - r.offset
	if usable > d.params.BufferSize {
		usable = d.params.BufferSize
	}
	if usable <= 0 {
		d.respondStatus(protocol.StatusCmdError)
		return
	}
	start := int(r.addr) + r.offset
	data := d.memory[start : start+usable]
	r.served = usable
	r.offset += usable
	d.respond(d.framer.Frame(protocol.StatusOK, data))
}

func (d *Device) respondStatus(status byte) {
	d.respond(d.framer.Frame(status, nil))
}

// respond applies pending response faults and delivers the frame's wire
// segments asynchronously, in order.
func (d *Device) respond(frame []byte) {
	if d.dropNext > 0 {
		d.dropNext--
		return
	}
	if d.corruptSkip > 0 {
		d.corruptSkip--
	} else if d.corruptLeft > 0 {
		d.corruptLeft--
		frame[len(frame)-1] ^= 0x01
	}
	segments := d.framer.Segments(frame)
	deliver := d.deliver
	latency := d.latency
	if deliver == nil {
		return
	}
	go func() {
		for _, seg := range segments {
			if latency > 0 {
				time.Sleep(latency)
			}
			deliver(seg)
		}
	}()
}
