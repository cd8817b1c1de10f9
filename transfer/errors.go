package transfer

import (
	"errors"
	"fmt"
)

// ErrWaitTimeout is returned by Gate.Wait when no delivery arrives within
// the configured bound.
var ErrWaitTimeout = errors.New("timed out waiting for delivery")

// ErrUnexpectedDelivery is returned by Gate.Deliver when a delivery
// arrives while the slot is still occupied. The single-slot contract does
// not queue; the payload is dropped.
var ErrUnexpectedDelivery = errors.New("delivery arrived with no pending waiter")

// Kind identifies a failure class of the transfer protocol.
type Kind int

const (
	// KindTimeout - no delivery within the notification timeout. The call
	// fails; re-issuing it is up to the caller, not the retry budgets.
	KindTimeout Kind = iota + 1
	// KindChannelCorruption - checksum mismatch on either side, checksum
	// retry budget exhausted.
	KindChannelCorruption
	// KindDeviceBusy - device kept reporting busy, busy retry budget
	// exhausted.
	KindDeviceBusy
	// KindFrameSizeInvalid - response length not a multiple of the packet
	// granularity. Always fatal.
	KindFrameSizeInvalid
	// KindCommandRejected - device set the command error bit. Always fatal.
	KindCommandRejected
	// KindSendRejected - the transport refused a send or the endpoint is
	// unreachable. Always fatal for the call.
	KindSendRejected
	// KindDeviceError - status byte outside the known bit set. Always
	// fatal; the raw value is carried for diagnostics.
	KindDeviceError
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindChannelCorruption:
		return "channel corruption"
	case KindDeviceBusy:
		return "device busy"
	case KindFrameSizeInvalid:
		return "invalid frame size"
	case KindCommandRejected:
		return "command rejected"
	case KindSendRejected:
		return "send rejected"
	case KindDeviceError:
		return "device error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the typed result every failed Write/Read returns. Retryable
// conditions are handled inside the state machine and only surface here
// once their budget is exhausted.
type Error struct {
	Kind   Kind
	Op     string
	Status byte // raw device status, when the device caused the failure
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status 0x%02X)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain; zero when err is
// not a transfer failure.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

func failf(kind Kind, op string, status byte, err error) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}
