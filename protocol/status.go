package protocol

import "fmt"

// Verdict is the action a status byte demands from the transfer loop.
// Verification steps return a verdict instead of raw bitmasks so the
// driving loop can pattern-match on it.
type Verdict int

const (
	// VerdictOK - frame accepted, proceed and reset retry counters.
	VerdictOK Verdict = iota
	// VerdictRetryBusy - device not ready, retry after a short backoff
	// against the busy budget.
	VerdictRetryBusy
	// VerdictRetryCrc - device rejected the frame checksum, retransmit
	// with the retry hint against the checksum budget.
	VerdictRetryCrc
	// VerdictFatalCmd - device rejected the command itself. Never retried.
	VerdictFatalCmd
	// VerdictFatalUnknown - status bits outside the known set. Never
	// retried; the raw value is surfaced for diagnostics.
	VerdictFatalUnknown
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictRetryBusy:
		return "retry-busy"
	case VerdictRetryCrc:
		return "retry-crc"
	case VerdictFatalCmd:
		return "command-rejected"
	case VerdictFatalUnknown:
		return "unknown-status"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Classify maps a device status byte to a verdict. The bits are evaluated
// individually since the device may combine them: a command rejection is
// fatal regardless of other bits; a checksum rejection outranks busy so
// the retransmission carries the retry hint.
func Classify(status byte) Verdict {
	if status == StatusOK {
		return VerdictOK
	}
	if status&StatusCmdError != 0 {
		return VerdictFatalCmd
	}
	if status&StatusCrcError != 0 {
		return VerdictRetryCrc
	}
	if status&StatusBusy != 0 {
		return VerdictRetryBusy
	}
	return VerdictFatalUnknown
}

// Busy reports whether the busy bit is set, independently of the verdict;
// a combined busy+crc status still wants the backoff delay.
func Busy(status byte) bool {
	return status&StatusBusy != 0
}
