package mcusim

import "time"

// Fault injection and introspection helpers. All safe to call between or
// during transfers; they take effect on the next matching event.

// BusyTimes makes the device report BUSY for the next n status checks.
func (d *Device) BusyTimes(n int) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.busyLeft = n
}

// AlwaysBusy makes every status check report BUSY until cleared.
func (d *Device) AlwaysBusy(v bool) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.busyAlways = v
}

// CorruptNextResponse flips one bit in the next response frame after its
// checksum is stamped, so the host's verification must reject it.
func (d *Device) CorruptNextResponse() {
	d.CorruptResponses(1)
}

// CorruptResponses corrupts the next n response frames.
func (d *Device) CorruptResponses(n int) {
	d.CorruptResponsesAfter(0, n)
}

// CorruptResponsesAfter lets the next skip responses through untouched,
// then corrupts the n that follow. Used to target a specific frame of an
// exchange, e.g. a data frame behind its status handshakes.
func (d *Device) CorruptResponsesAfter(skip, n int) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.corruptSkip = skip
	d.corruptLeft = n
}

// ForceNextStatus makes the next status check answer with b verbatim,
// bypassing the busy and error state machine.
func (d *Device) ForceNextStatus(b byte) {
	d.mx.Lock()
	defer d.mx.Unlock()
	s := b
	d.forceStatus = &s
}

// DropResponses suppresses the next n responses entirely, leaving the
// host to time out.
func (d *Device) DropResponses(n int) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.dropNext = n
}

// RejectSends makes Send fail immediately, simulating a torn-down link.
func (d *Device) RejectSends(v bool) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.rejectSend = v
}

// Offline toggles reachability.
func (d *Device) Offline(v bool) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.offline = v
}

// RejectNextCommand makes the next status check report CMD_ERROR.
func (d *Device) RejectNextCommand() {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.cmdErrNext = true
}

// Latency delays each delivered segment by dur.
func (d *Device) Latency(dur time.Duration) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.latency = dur
}

// Preload copies data into device memory at addr.
func (d *Device) Preload(addr uint32, data []byte) {
	d.mx.Lock()
	defer d.mx.Unlock()
	copy(d.memory[addr:], data)
}

// Memory returns a copy of length bytes of device memory at addr.
func (d *Device) Memory(addr uint32, length int) []byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	out := make([]byte, length)
	copy(out, d.memory[addr:])
	return out
}

// Checks returns how many CHECK commands the device has handled.
func (d *Device) Checks() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.checks
}

// Reads returns how many READ commands the device has handled.
func (d *Device) Reads() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.reads
}

// Blocks returns how many write blocks the device has committed.
func (d *Device) Blocks() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.blocks
}

// Hints returns how many frames arrived with the CRC retry hint set.
func (d *Device) Hints() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.hints
}

// ResetCounters zeroes the event counters.
func (d *Device) ResetCounters() {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.checks, d.reads, d.blocks, d.hints = 0, 0, 0, 0
}
