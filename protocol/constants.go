package protocol

// Control codes, byte 0 of every host-to-device frame. They select the
// device-side handler that processes the frame.
const (
	CtrlWrite byte = 0x00
	CtrlRead  byte = 0x04
	CtrlCheck byte = 0x10

	// FlagCrcRetry is OR'd into the control byte of a retransmission after
	// the host rejected the previous response's checksum, so the device can
	// apply local recovery.
	FlagCrcRetry byte = 0x20
)

// Status bits, byte 0 of every device-to-host frame. These are independent
// condition bits, not a closed enum; the device may set several at once.
const (
	StatusOK       byte = 0x00
	StatusBusy     byte = 0x01
	StatusCmdError byte = 0x10
	StatusCrcError byte = 0x20
)

const (
	ChecksumSize = 4
	StatusSize   = 1

	// HeaderSize covers the control/status byte plus the checksum field,
	// i.e. everything in a frame that is not payload or filler.
	HeaderSize = StatusSize + ChecksumSize

	// Filler pads framed blocks up to the device packet granularity.
	Filler byte = 0xFF
)
