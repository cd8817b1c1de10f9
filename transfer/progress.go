package transfer

import "time"

type Direction int

const (
	DirectionWrite Direction = iota
	DirectionRead
)

func (d Direction) String() string {
	if d == DirectionRead {
		return "read"
	}
	return "write"
}

// Progress is reported after every transmitted window (write) and every
// completed cycle (read). Callbacks must return quickly; they run on the
// transfer goroutine.
type Progress struct {
	Direction  Direction
	BytesDone  int
	BytesTotal int
	// Segment/Segments track the wire segment cursor on writes; zero on
	// reads.
	Segment  int
	Segments int

	BusyRetries int
	CrcRetries  int
	Elapsed     time.Duration
}

type ProgressFunc func(Progress)
