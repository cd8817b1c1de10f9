package transfer

import "time"

// session holds the mutable state of one Write or Read call: segment
// cursor, progress accounting and the two independent retry counters.
// Created on entry, gone on return; no state survives across calls. All
// fields are owned by the driving loop - the gate is the client's only
// field shared with the delivery callback.
type session struct {
	cursor      int
	bytesDone   int
	bytesTotal  int
	busyRetries int
	crcRetries  int
	// hintPending requests the CRC retry hint on the next retransmitted
	// block-start segment.
	hintPending bool
	started     time.Time
}

func newSession(total int) *session {
	return &session{bytesTotal: total, started: time.Now()}
}

// resetBudgets clears both retry counters; called on every accepted
// exchange so the budgets bound consecutive failures, not the whole call.
func (s *session) resetBudgets() {
	s.busyRetries = 0
	s.crcRetries = 0
}

// rollback returns how many segments to take back after a failed window
// verification: a full window when the cursor is window-aligned, otherwise
// just the partial window that was sent.
func (s *session) rollback(window int) int {
	if s.cursor == 0 {
		return 0
	}
	if s.cursor%window == 0 {
		return window
	}
	return s.cursor % window
}
