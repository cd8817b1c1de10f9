package protocol

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_PaddingSize(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		length   int
		expected int
	}{
		{0, 0},
		{1, 63},
		{63, 1},
		{64, 0},
		{65, 63},
		{128, 0},
		{1029, 59},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d", test.length), func(t *testing.T) {
			assert.Equal(t, test.expected, p.PaddingSize(test.length))
		})
	}
}

func TestParams_FrameSizeInvariant(t *testing.T) {
	p := DefaultParams()
	for payload := 0; payload <= p.BufferSize+p.HeaderReserve; payload++ {
		size := p.FrameSize(payload)
		padding := size - HeaderSize - payload
		assert.Zero(t, size%p.PacketSize, "payload %d", payload)
		assert.Less(t, padding, p.PacketSize, "payload %d", payload)
		assert.GreaterOrEqual(t, padding, 0, "payload %d", payload)
	}
}

func TestFramer_Blocks(t *testing.T) {
	f := NewFramer(DefaultParams())
	tests := []struct {
		name     string
		payload  int
		expected []int
	}{
		{"empty", 0, []int{0}},
		{"small", 100, []int{100}},
		{"first block exactly full", 1031, []int{1031}},
		{"one byte over", 1032, []int{1031, 1}},
		{"two blocks 1500", 1500, []int{1031, 469}},
		{"three blocks", 1031 + 1024 + 10, []int{1031, 1024, 10}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			blocks := f.Blocks(make([]byte, test.payload))
			require.Len(t, blocks, len(test.expected))
			for i, b := range blocks {
				assert.Equal(t, test.expected[i], len(b), "block %d", i)
			}
		})
	}
}

func TestFramer_Frame(t *testing.T) {
	f := NewFramer(DefaultParams())
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	frame := f.Frame(CtrlWrite, payload)

	assert.Equal(t, 64, len(frame))
	assert.Equal(t, CtrlWrite, frame[0])
	assert.Equal(t, payload, frame[HeaderSize:HeaderSize+4])
	for i := HeaderSize + 4; i < len(frame); i++ {
		assert.Equal(t, Filler, frame[i], "filler at %d", i)
	}
	assert.True(t, Verify(frame))
}

func TestFramer_Segments(t *testing.T) {
	f := NewFramer(DefaultParams())
	tests := []struct {
		frame    int
		expected []int
	}{
		{64, []int{64}},
		{512, []int{512}},
		{576, []int{512, 64}},
		{1088, []int{512, 512, 64}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d", test.frame), func(t *testing.T) {
			segs := f.Segments(make([]byte, test.frame))
			require.Len(t, segs, len(test.expected))
			for i, s := range segs {
				assert.Equal(t, test.expected[i], len(s), "segment %d", i)
			}
		})
	}
}

func TestPlan_TwoBlocks(t *testing.T) {
	f := NewFramer(DefaultParams())
	plan := f.Plan(make([]byte, 1500))

	// 1031-byte block frames to 1088 (3 segments), 469-byte block to 512
	assert.Equal(t, 4, plan.SegmentCount())
	assert.Equal(t, 1500, plan.TotalBytes())
	assert.True(t, plan.IsBlockStart(0))
	assert.False(t, plan.IsBlockStart(1))
	assert.False(t, plan.IsBlockStart(2))
	assert.True(t, plan.IsBlockStart(3))
}

func TestPlan_PayloadDone(t *testing.T) {
	f := NewFramer(DefaultParams())
	plan := f.Plan(make([]byte, 1500))
	tests := []struct {
		segments int
		expected int
	}{
		{0, 0},
		{1, 507},  // 512 minus the 5-byte header
		{2, 1019},
		{3, 1031}, // first block complete
		{4, 1500},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d", test.segments), func(t *testing.T) {
			assert.Equal(t, test.expected, plan.PayloadDone(test.segments))
		})
	}
}

func TestPlan_HintedSegment(t *testing.T) {
	f := NewFramer(DefaultParams())
	plan := f.Plan(make([]byte, 1500))

	hinted := plan.HintedSegment(0)
	assert.Equal(t, CtrlWrite|FlagCrcRetry, hinted[0])
	assert.NotEqual(t, plan.Segment(0), hinted)
	// non block-start segments have no control byte to hint on
	assert.Equal(t, plan.Segment(1), plan.HintedSegment(1))

	// the hinted block still verifies: rebuild it from its segments
	full := append(append([]byte{}, hinted...), plan.Segment(1)...)
	full = append(full, plan.Segment(2)...)
	assert.True(t, Verify(full))
}

func TestFraming_RoundTripIdentity(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	geometries := []Params{
		DefaultParams(),
		{BufferSize: 256, PacketSize: 32, SegmentSize: 128, HeaderReserve: 4,
			WindowSize: 2, BusyRetryMax: 3, CrcRetryMax: 3, NotifyTimeout: DefaultParams().NotifyTimeout},
		{BufferSize: 64, PacketSize: 16, SegmentSize: 64, HeaderReserve: 0,
			WindowSize: 1, BusyRetryMax: 3, CrcRetryMax: 3, NotifyTimeout: DefaultParams().NotifyTimeout},
	}
	for gi, p := range geometries {
		require.NoError(t, p.Validate())
		f := NewFramer(p)
		for _, size := range []int{0, 1, 31, p.BufferSize - 1, p.BufferSize, p.BufferSize + p.HeaderReserve, 3*p.BufferSize + 17} {
			t.Run(fmt.Sprintf("geometry %d size %d", gi, size), func(t *testing.T) {
				payload := make([]byte, size)
				_, _ = rnd.Read(payload)
				var recovered []byte
				for _, block := range f.Blocks(payload) {
					r := NewReassembler(p)
					for _, seg := range f.Segments(f.Frame(CtrlWrite, block)) {
						r.Add(seg)
					}
					require.NoError(t, r.Validate())
					chunk, err := r.Extract(len(block))
					require.NoError(t, err)
					recovered = append(recovered, chunk...)
				}
				assert.Equal(t, payload, recovered)
			})
		}
	}
}
