package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/mculink"
	"github.com/mklimuk/mculink/protocol"
)

const defaultBusyBackoff = 100 * time.Millisecond

// Client drives the transfer protocol against a single endpoint: it frames
// payloads, pushes wire segments through the transport and suspends on the
// notification gate between sends. One request is outstanding at a time;
// callers are responsible for serializing Write/Read calls against the
// same endpoint.
type Client struct {
	transport mculink.Transport
	params    protocol.Params
	framer    *protocol.Framer
	gate      *Gate
	log       *slog.Logger
	progress  ProgressFunc
	backoff   time.Duration
}

func New(transport mculink.Transport, opts ...Option) (*Client, error) {
	c := &Client{
		transport: transport,
		params:    protocol.DefaultParams(),
		gate:      NewGate(),
		log:       slog.Default(),
		backoff:   defaultBusyBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer parameters: %w", err)
	}
	c.framer = protocol.NewFramer(c.params)
	return c, nil
}

// Params returns the geometry the client operates with.
func (c *Client) Params() protocol.Params { return c.params }

// Deliver is the callback the transport invokes for every asynchronous
// delivery from the endpoint. The buffer is copied into the notification
// gate, releasing exactly one waiter.
func (c *Client) Deliver(data []byte) {
	if err := c.gate.Deliver(data); err != nil {
		c.log.Warn("dropped delivery", "error", err, "size", len(data))
	}
}

// Ping runs a single CHECK/VERIFY round-trip against the endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if !c.transport.Reachable(ctx) {
		return failf(KindSendRejected, "ping", 0, mculink.ErrNotReachable)
	}
	return c.check(ctx, newSession(0))
}

// Write transfers payload to the endpoint. Every window of segments is
// gated by a CHECK/VERIFY cycle; a failed verification rolls the cursor
// back to the start of the last sent window and resends it.
func (c *Client) Write(ctx context.Context, payload []byte) error {
	if !c.transport.Reachable(ctx) {
		return failf(KindSendRejected, "write", 0, mculink.ErrNotReachable)
	}
	plan := c.framer.Plan(payload)
	s := newSession(plan.TotalBytes())
	c.log.Debug("write started", "bytes", plan.TotalBytes(), "segments", plan.SegmentCount())
	return c.transmit(ctx, s, plan)
}

// transmit drives the windowed write loop: CHECK, send a window, CHECK
// again to verify it, until every segment of the plan is acknowledged.
func (c *Client) transmit(ctx context.Context, s *session, plan *protocol.Plan) error {
	for {
		out, err := c.exchange(ctx, "check", c.framer.CheckFrame(), 1)
		if err != nil {
			return err
		}
		switch out.verdict {
		case protocol.VerdictOK:
			s.resetBudgets()
			if s.cursor == plan.SegmentCount() {
				c.log.Debug("transmit complete", "bytes", s.bytesDone, "elapsed", time.Since(s.started))
				return nil
			}
			if err := c.sendWindow(ctx, s, plan); err != nil {
				return err
			}
		case protocol.VerdictRetryBusy:
			if err := c.busyRetry(ctx, s, "check", out.status); err != nil {
				return err
			}
		case protocol.VerdictRetryCrc:
			if err := c.crcRetry(s, "check", out); err != nil {
				return err
			}
			s.cursor -= s.rollback(c.params.WindowSize)
			s.hintPending = true
		case protocol.VerdictFatalCmd:
			return failf(KindCommandRejected, "write", out.status, nil)
		default:
			return failf(KindDeviceError, "write", out.status, nil)
		}
	}
}

// Read retrieves length payload bytes from the endpoint. descriptor is the
// caller's read request, opcode header included, sent ahead of the data
// cycles. The transfer ends when the accumulated payload reaches length;
// the protocol has no end-of-data marker.
func (c *Client) Read(ctx context.Context, descriptor []byte, length int) ([]byte, error) {
	if !c.transport.Reachable(ctx) {
		return nil, failf(KindSendRejected, "read", 0, mculink.ErrNotReachable)
	}
	s := newSession(length)
	c.log.Debug("read started", "bytes", length)
	// the request descriptor travels as a one-block write; the CHECK cycle
	// that follows it doubles as its verification
	if err := c.transmit(ctx, newSession(len(descriptor)), c.framer.Plan(descriptor)); err != nil {
		return nil, err
	}
	out := make([]byte, 0, length)
	for len(out) < length {
		if err := c.check(ctx, s); err != nil {
			return nil, err
		}
		chunk, err := c.readCycle(ctx, s, length-len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		s.bytesDone = len(out)
		c.report(DirectionRead, s, 0)
	}
	c.log.Debug("read complete", "bytes", len(out), "elapsed", time.Since(s.started))
	return out, nil
}

// check runs one CHECK/VERIFY handshake, driving the retry budgets.
func (c *Client) check(ctx context.Context, s *session) error {
	return c.command(ctx, s, "check", func(hint bool) []byte {
		ctrl := protocol.CtrlCheck
		if hint {
			ctrl |= protocol.FlagCrcRetry
		}
		return c.framer.Frame(ctrl, nil)
	})
}

// command sends a small command frame until the device accepts it. build
// is called per attempt with the hint state so retransmissions after a
// checksum failure carry the CRC retry hint.
func (c *Client) command(ctx context.Context, s *session, op string, build func(hint bool) []byte) error {
	hint := false
	for {
		out, err := c.exchange(ctx, op, build(hint), 1)
		if err != nil {
			return err
		}
		switch out.verdict {
		case protocol.VerdictOK:
			s.resetBudgets()
			return nil
		case protocol.VerdictRetryBusy:
			if err := c.busyRetry(ctx, s, op, out.status); err != nil {
				return err
			}
		case protocol.VerdictRetryCrc:
			if err := c.crcRetry(s, op, out); err != nil {
				return err
			}
			hint = true
		case protocol.VerdictFatalCmd:
			return failf(KindCommandRejected, op, out.status, nil)
		default:
			return failf(KindDeviceError, op, out.status, nil)
		}
	}
}

// readCycle issues one READ command and reassembles its response. The
// device returns min(remaining, BufferSize) usable bytes per cycle.
func (c *Client) readCycle(ctx context.Context, s *session, remaining int) ([]byte, error) {
	const op = "read-cmd"
	usable := remaining
	if usable > c.params.BufferSize {
		usable = c.params.BufferSize
	}
	deliveries := c.params.DeliveryCount(remaining)
	hint := false
	for {
		ctrl := protocol.CtrlRead
		if hint {
			ctrl |= protocol.FlagCrcRetry
		}
		out, err := c.exchange(ctx, op, c.framer.Frame(ctrl, nil), deliveries)
		if err != nil {
			return nil, err
		}
		switch out.verdict {
		case protocol.VerdictOK:
			s.resetBudgets()
			chunk, err := out.payload.Extract(usable)
			if err != nil {
				return nil, failf(KindFrameSizeInvalid, op, out.status, err)
			}
			return chunk, nil
		case protocol.VerdictRetryBusy:
			if err := c.busyRetry(ctx, s, op, out.status); err != nil {
				return nil, err
			}
		case protocol.VerdictRetryCrc:
			if err := c.crcRetry(s, op, out); err != nil {
				return nil, err
			}
			hint = true
		case protocol.VerdictFatalCmd:
			return nil, failf(KindCommandRejected, op, out.status, nil)
		default:
			return nil, failf(KindDeviceError, op, out.status, nil)
		}
	}
}

// sendWindow transmits up to one window of segments back-to-back, no
// acknowledgement in between. A pending CRC hint is applied to the first
// segment when it starts a block (only block starts carry a control byte).
func (c *Client) sendWindow(ctx context.Context, s *session, plan *protocol.Plan) error {
	end := s.cursor + c.params.WindowSize
	if end > plan.SegmentCount() {
		end = plan.SegmentCount()
	}
	for ; s.cursor < end; s.cursor++ {
		seg := plan.Segment(s.cursor)
		if s.hintPending {
			seg = plan.HintedSegment(s.cursor)
			s.hintPending = false
		}
		if err := c.transport.Send(ctx, seg); err != nil {
			return failf(KindSendRejected, "write", 0, err)
		}
	}
	s.bytesDone = plan.PayloadDone(s.cursor)
	c.report(DirectionWrite, s, plan.SegmentCount())
	return nil
}

// outcome is the classified result of one send/await/verify exchange.
type outcome struct {
	verdict protocol.Verdict
	status  byte
	// apiCrc marks a host-side checksum miscompare as opposed to a
	// device-reported one; both draw on the same budget.
	apiCrc  bool
	payload *protocol.Reassembler
}

// exchange is the single send-frame/await-response/classify primitive all
// operations are built on. Transport rejections, timeouts and alignment
// violations come back as errors; everything else is a verdict for the
// caller's retry policy.
func (c *Client) exchange(ctx context.Context, op string, frame []byte, deliveries int) (outcome, error) {
	for _, seg := range c.framer.Segments(frame) {
		if err := c.transport.Send(ctx, seg); err != nil {
			return outcome{}, failf(KindSendRejected, op, 0, err)
		}
	}
	r := protocol.NewReassembler(c.params)
	for i := 0; i < deliveries; i++ {
		data, err := c.gate.Wait(ctx, c.params.NotifyTimeout)
		if err != nil {
			if errors.Is(err, ErrWaitTimeout) {
				err = fmt.Errorf("delivery %d of %d: %w", i+1, deliveries, err)
			}
			return outcome{}, failf(KindTimeout, op, 0, err)
		}
		r.Add(data)
	}
	if err := r.Validate(); err != nil {
		if errors.Is(err, protocol.ErrFrameAlignment) {
			return outcome{}, failf(KindFrameSizeInvalid, op, 0, err)
		}
		return outcome{verdict: protocol.VerdictRetryCrc, apiCrc: true, payload: r}, nil
	}
	status := r.Status()
	return outcome{verdict: protocol.Classify(status), status: status, payload: r}, nil
}

func (c *Client) busyRetry(ctx context.Context, s *session, op string, status byte) error {
	s.busyRetries++
	if s.busyRetries >= c.params.BusyRetryMax {
		return failf(KindDeviceBusy, op, status, fmt.Errorf("still busy after %d attempts", s.busyRetries))
	}
	c.log.Debug("device busy, backing off", "op", op, "attempt", s.busyRetries)
	select {
	case <-time.After(c.backoff):
		return nil
	case <-ctx.Done():
		return failf(KindTimeout, op, 0, ctx.Err())
	}
}

func (c *Client) crcRetry(s *session, op string, out outcome) error {
	s.crcRetries++
	side := "device"
	if out.apiCrc {
		side = "host"
	}
	if s.crcRetries >= c.params.CrcRetryMax {
		return failf(KindChannelCorruption, op, out.status,
			fmt.Errorf("%s-side checksum failure after %d attempts", side, s.crcRetries))
	}
	c.log.Debug("checksum failure, retrying", "op", op, "side", side, "attempt", s.crcRetries)
	return nil
}

func (c *Client) report(dir Direction, s *session, segments int) {
	if c.progress == nil {
		return
	}
	c.progress(Progress{
		Direction:   dir,
		BytesDone:   s.bytesDone,
		BytesTotal:  s.bytesTotal,
		Segment:     s.cursor,
		Segments:    segments,
		BusyRetries: s.busyRetries,
		CrcRetries:  s.crcRetries,
		Elapsed:     time.Since(s.started),
	})
}
