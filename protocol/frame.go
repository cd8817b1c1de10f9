package protocol

// Framer builds outbound frames: it partitions payloads into logical
// blocks sized to the device buffer, stamps each block with a control byte
// and checksum, pads it to the packet granularity and slices it into wire
// segments.
type Framer struct {
	params Params
}

func NewFramer(params Params) *Framer {
	return &Framer{params: params}
}

// Frame builds a single framed block: control byte, big-endian CRC-32,
// payload, filler up to the next packet boundary.
func (f *Framer) Frame(ctrl byte, payload []byte) []byte {
	frame := make([]byte, f.params.FrameSize(len(payload)))
	frame[0] = ctrl
	copy(frame[HeaderSize:], payload)
	for i := HeaderSize + len(payload); i < len(frame); i++ {
		frame[i] = Filler
	}
	Stamp(frame)
	return frame
}

// CheckFrame builds the handshake frame: a CHECK control byte, a valid
// checksum and filler only.
func (f *Framer) CheckFrame() []byte {
	return f.Frame(CtrlCheck, nil)
}

// ReadFrame builds the frame that triggers one read cycle on the device.
func (f *Framer) ReadFrame() []byte {
	return f.Frame(CtrlRead, nil)
}

// Segments slices a framed block into transport-sized wire segments, in
// order. The last segment may be shorter.
func (f *Framer) Segments(frame []byte) [][]byte {
	var segs [][]byte
	for len(frame) > f.params.SegmentSize {
		segs = append(segs, frame[:f.params.SegmentSize])
		frame = frame[f.params.SegmentSize:]
	}
	return append(segs, frame)
}

// Blocks partitions a payload into logical block payloads. The first block
// may carry HeaderReserve extra bytes on top of the buffer size (the
// caller's embedded opcode header); every following block carries a full
// buffer; the last carries whatever remains.
func (f *Framer) Blocks(payload []byte) [][]byte {
	first := f.params.BufferSize + f.params.HeaderReserve
	var blocks [][]byte
	cap := first
	for len(payload) > cap {
		blocks = append(blocks, payload[:cap])
		payload = payload[cap:]
		cap = f.params.BufferSize
	}
	return append(blocks, payload)
}

// Plan is the complete outbound schedule for one write payload: every
// framed block sliced into wire segments, addressable by a global segment
// cursor. Segments are re-derivable from their block, so a retransmission
// with the CRC retry hint re-frames the block instead of patching bytes
// (the checksum covers the control byte).
type Plan struct {
	framer     *Framer
	segments   [][]byte
	blockStart map[int]int // global index of a block's first segment -> block index
	blocks     [][]byte    // raw payload per block
	total      int
}

// Plan frames the whole payload and returns its transmission schedule.
func (f *Framer) Plan(payload []byte) *Plan {
	p := &Plan{
		framer:     f,
		blockStart: make(map[int]int),
		blocks:     f.Blocks(payload),
		total:      len(payload),
	}
	for i, block := range p.blocks {
		p.blockStart[len(p.segments)] = i
		p.segments = append(p.segments, f.Segments(f.Frame(CtrlWrite, block))...)
	}
	return p
}

func (p *Plan) SegmentCount() int { return len(p.segments) }

func (p *Plan) TotalBytes() int { return p.total }

func (p *Plan) Segment(i int) []byte { return p.segments[i] }

// IsBlockStart reports whether segment i is the first segment of a logical
// block, i.e. whether its first byte is a control byte.
func (p *Plan) IsBlockStart(i int) bool {
	_, ok := p.blockStart[i]
	return ok
}

// PayloadDone returns how many payload bytes the first n segments cover.
// Used for progress accounting only; partially covered blocks count the
// bytes their sent segments carry past the frame header.
func (p *Plan) PayloadDone(n int) int {
	done, segs := 0, 0
	for _, block := range p.blocks {
		frame := p.framer.params.FrameSize(len(block))
		nseg := (frame + p.framer.params.SegmentSize - 1) / p.framer.params.SegmentSize
		if n >= segs+nseg {
			done += len(block)
			segs += nseg
			continue
		}
		if n > segs {
			sent := (n-segs)*p.framer.params.SegmentSize - HeaderSize
			if sent > len(block) {
				sent = len(block)
			}
			if sent > 0 {
				done += sent
			}
		}
		break
	}
	return done
}

// HintedSegment returns segment i re-framed with the CRC retry hint set on
// its block's control byte. Only block-start segments carry a control byte;
// for any other segment the plain segment is returned.
func (p *Plan) HintedSegment(i int) []byte {
	block, ok := p.blockStart[i]
	if !ok {
		return p.segments[i]
	}
	hinted := p.framer.Segments(p.framer.Frame(CtrlWrite|FlagCrcRetry, p.blocks[block]))
	return hinted[0]
}
