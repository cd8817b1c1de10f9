package mcusim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/mculink"
	"github.com/mklimuk/mculink/protocol"
)

// collect drains asynchronous deliveries into a channel so the test can
// await a full response frame.
func collect() (func([]byte), func(t *testing.T, n int) []byte) {
	ch := make(chan []byte, 16)
	deliver := func(data []byte) { ch <- data }
	await := func(t *testing.T, n int) []byte {
		t.Helper()
		var out []byte
		for i := 0; i < n; i++ {
			select {
			case seg := <-ch:
				out = append(out, seg...)
			case <-time.After(time.Second):
				t.Fatal("no delivery")
			}
		}
		return out
	}
	return deliver, await
}

func TestDevice_CheckOnIdle(t *testing.T) {
	p := protocol.DefaultParams()
	dev := New(p, 256)
	deliver, await := collect()
	dev.Connect(deliver)

	f := protocol.NewFramer(p)
	require.NoError(t, dev.Send(context.Background(), f.CheckFrame()))
	frame := await(t, 1)
	require.True(t, protocol.Verify(frame))
	assert.Equal(t, protocol.StatusOK, frame[0])
	assert.Equal(t, 1, dev.Checks())
}

func TestDevice_RejectsCorruptedCommand(t *testing.T) {
	p := protocol.DefaultParams()
	dev := New(p, 256)
	deliver, await := collect()
	dev.Connect(deliver)

	cmd := protocol.NewFramer(p).CheckFrame()
	cmd[1] ^= 0xFF
	require.NoError(t, dev.Send(context.Background(), cmd))
	frame := await(t, 1)
	assert.Equal(t, protocol.StatusCrcError, frame[0])
}

func TestDevice_CommitsBufferedBlockOnCheck(t *testing.T) {
	p := protocol.DefaultParams()
	dev := New(p, 256)
	deliver, await := collect()
	dev.Connect(deliver)

	f := protocol.NewFramer(p)
	data := make([]byte, 50)
	for i := range data {
		data[i] = byte(i)
	}
	frame := f.Frame(protocol.CtrlWrite, mculink.WriteRequest(0x10, data))
	for _, seg := range f.Segments(frame) {
		require.NoError(t, dev.Send(context.Background(), seg))
	}
	// the CHECK arrives while the block sits in the receive buffer and must
	// still be recognized as a command
	require.NoError(t, dev.Send(context.Background(), f.CheckFrame()))
	resp := await(t, 1)
	require.True(t, protocol.Verify(resp))
	assert.Equal(t, protocol.StatusOK, resp[0])
	assert.Equal(t, 1, dev.Blocks())
	assert.Equal(t, data, dev.Memory(0x10, len(data)))
}

func TestDevice_HintedReadServesSameChunk(t *testing.T) {
	p := protocol.DefaultParams()
	dev := New(p, 256)
	deliver, await := collect()
	dev.Connect(deliver)

	f := protocol.NewFramer(p)
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i * 3)
	}
	dev.Preload(0, data)

	require.NoError(t, dev.Send(context.Background(), f.Frame(protocol.CtrlWrite, mculink.ReadRequest(0, len(data)))))
	require.NoError(t, dev.Send(context.Background(), f.CheckFrame()))
	assert.Equal(t, protocol.StatusOK, await(t, 1)[0])

	require.NoError(t, dev.Send(context.Background(), f.ReadFrame()))
	first := await(t, 1)
	require.True(t, protocol.Verify(first))
	assert.Equal(t, data, first[protocol.HeaderSize:protocol.HeaderSize+len(data)])

	// a retried cycle carries the hint; the rejected chunk comes back
	// instead of the next one
	require.NoError(t, dev.Send(context.Background(), f.Frame(protocol.CtrlRead|protocol.FlagCrcRetry, nil)))
	second := await(t, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, dev.Hints())

	// the session is exhausted once the re-served chunk is accepted
	require.NoError(t, dev.Send(context.Background(), f.ReadFrame()))
	assert.Equal(t, protocol.StatusCmdError, await(t, 1)[0])
}

func TestDevice_ReadWithoutDescriptor(t *testing.T) {
	p := protocol.DefaultParams()
	dev := New(p, 256)
	deliver, await := collect()
	dev.Connect(deliver)

	f := protocol.NewFramer(p)
	require.NoError(t, dev.Send(context.Background(), f.ReadFrame()))
	frame := await(t, 1)
	assert.Equal(t, protocol.StatusCmdError, frame[0])
}

func TestDevice_ReachabilityGates(t *testing.T) {
	dev := New(protocol.DefaultParams(), 256)
	assert.False(t, dev.Reachable(context.Background()), "no callback yet")
	dev.Connect(func([]byte) {})
	assert.True(t, dev.Reachable(context.Background()))
	dev.Offline(true)
	assert.False(t, dev.Reachable(context.Background()))
}

func TestDevice_RejectsOversizedSegment(t *testing.T) {
	p := protocol.DefaultParams()
	dev := New(p, 256)
	dev.Connect(func([]byte) {})
	assert.Error(t, dev.Send(context.Background(), make([]byte, p.SegmentSize+1)))
	assert.Error(t, dev.Send(context.Background(), nil))
}
