package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/mculink"
	"github.com/mklimuk/mculink/mcusim"
	"github.com/mklimuk/mculink/protocol"
)

const testAddr uint32 = 0x100

func newPair(t *testing.T, opts ...Option) (*Client, *mcusim.Device) {
	t.Helper()
	dev := mcusim.New(protocol.DefaultParams(), 4096)
	base := []Option{WithTimeout(500 * time.Millisecond), WithBusyBackoff(time.Millisecond)}
	c, err := New(dev, append(base, opts...)...)
	require.NoError(t, err)
	dev.Connect(c.Deliver)
	return c, dev
}

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*31 + 7)
	}
	return out
}

func TestClient_Ping(t *testing.T) {
	c, dev := newPair(t)
	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 1, dev.Checks())
}

func TestClient_WriteRoundTrip(t *testing.T) {
	c, dev := newPair(t)
	data := pattern(1500)

	require.NoError(t, c.Write(context.Background(), mculink.WriteRequest(testAddr, data)))
	assert.Equal(t, data, dev.Memory(testAddr, len(data)))
}

func TestClient_WriteWindowCadence(t *testing.T) {
	c, dev := newPair(t)
	// 1507 payload bytes split into a 1031 block (3 segments) and a 476
	// block (1 segment); two windows, so one initial check plus one verify
	// per window
	require.NoError(t, c.Write(context.Background(), mculink.WriteRequest(testAddr, pattern(1500))))
	assert.Equal(t, 3, dev.Checks())
	assert.Equal(t, 2, dev.Blocks())
	assert.Zero(t, dev.Hints())
}

func TestClient_WriteSmall(t *testing.T) {
	c, dev := newPair(t)
	data := pattern(10)
	require.NoError(t, c.Write(context.Background(), mculink.WriteRequest(testAddr, data)))
	assert.Equal(t, data, dev.Memory(testAddr, len(data)))
	assert.Equal(t, 2, dev.Checks())
	assert.Equal(t, 1, dev.Blocks())
}

func TestClient_ReadRoundTrip(t *testing.T) {
	c, dev := newPair(t)
	data := pattern(1500)
	dev.Preload(testAddr, data)

	got, err := c.Read(context.Background(), mculink.ReadRequest(testAddr, len(data)), len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
	// 1024 usable bytes in the first cycle, 476 in the second
	assert.Equal(t, 2, dev.Reads())
}

func TestClient_ReadSingleCycle(t *testing.T) {
	c, dev := newPair(t)
	data := pattern(100)
	dev.Preload(testAddr, data)

	got, err := c.Read(context.Background(), mculink.ReadRequest(testAddr, len(data)), len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, 1, dev.Reads())
}

func TestClient_BusyRecovery(t *testing.T) {
	c, dev := newPair(t)
	dev.BusyTimes(2)
	data := pattern(200)
	require.NoError(t, c.Write(context.Background(), mculink.WriteRequest(testAddr, data)))
	assert.Equal(t, data, dev.Memory(testAddr, len(data)))
}

func TestClient_BusyExhaustion(t *testing.T) {
	c, dev := newPair(t)
	dev.AlwaysBusy(true)

	err := c.Write(context.Background(), mculink.WriteRequest(testAddr, pattern(10)))
	assert.Equal(t, KindDeviceBusy, KindOf(err))
	// the budget allows exactly BusyRetryMax attempts
	assert.Equal(t, c.Params().BusyRetryMax, dev.Checks())
}

func TestClient_CorruptionRecoveryWithHint(t *testing.T) {
	c, dev := newPair(t)
	dev.CorruptNextResponse()
	data := pattern(100)

	// the corrupted check response burns one checksum retry; the block
	// that follows carries the retry hint
	require.NoError(t, c.Write(context.Background(), mculink.WriteRequest(testAddr, data)))
	assert.Equal(t, data, dev.Memory(testAddr, len(data)))
	assert.Equal(t, 1, dev.Hints())
}

func TestClient_ReadCorruptionRecovery(t *testing.T) {
	c, dev := newPair(t)
	data := pattern(1500)
	dev.Preload(testAddr, data)
	// three status handshakes precede the first data frame: the descriptor
	// gate, its verify and the first cycle's check
	dev.CorruptResponsesAfter(3, 1)

	got, err := c.Read(context.Background(), mculink.ReadRequest(testAddr, len(data)), len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
	// the rejected cycle is served twice; the retry carries the hint and
	// returns the same chunk, not the next one
	assert.Equal(t, 3, dev.Reads())
	assert.Equal(t, 1, dev.Hints())
}

func TestClient_CorruptionExhaustion(t *testing.T) {
	c, dev := newPair(t)
	dev.CorruptResponses(10)

	err := c.Write(context.Background(), mculink.WriteRequest(testAddr, pattern(10)))
	assert.Equal(t, KindChannelCorruption, KindOf(err))
	assert.Equal(t, c.Params().CrcRetryMax, dev.Checks())
}

func TestClient_CommandRejected(t *testing.T) {
	c, dev := newPair(t)
	dev.RejectNextCommand()

	err := c.Write(context.Background(), mculink.WriteRequest(testAddr, pattern(10)))
	assert.Equal(t, KindCommandRejected, KindOf(err))
}

func TestClient_Timeout(t *testing.T) {
	c, dev := newPair(t, WithTimeout(50*time.Millisecond))
	dev.DropResponses(1)

	err := c.Write(context.Background(), mculink.WriteRequest(testAddr, pattern(10)))
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestClient_SendRejected(t *testing.T) {
	c, dev := newPair(t)
	dev.RejectSends(true)

	err := c.Write(context.Background(), mculink.WriteRequest(testAddr, pattern(10)))
	assert.Equal(t, KindSendRejected, KindOf(err))
	assert.ErrorIs(t, err, mculink.ErrSendRejected)
}

func TestClient_Unreachable(t *testing.T) {
	c, dev := newPair(t)
	dev.Offline(true)

	err := c.Write(context.Background(), mculink.WriteRequest(testAddr, pattern(10)))
	assert.Equal(t, KindSendRejected, KindOf(err))
	assert.ErrorIs(t, err, mculink.ErrNotReachable)

	assert.ErrorIs(t, c.Ping(context.Background()), mculink.ErrNotReachable)
}

func TestClient_UnknownStatus(t *testing.T) {
	c, dev := newPair(t)
	dev.ForceNextStatus(0x80)

	err := c.Write(context.Background(), mculink.WriteRequest(testAddr, pattern(10)))
	require.Equal(t, KindDeviceError, KindOf(err))
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, byte(0x80), te.Status)
}

func TestClient_WriteProgress(t *testing.T) {
	var reports []Progress
	c, _ := newPair(t, WithProgress(func(p Progress) {
		reports = append(reports, p)
	}))

	require.NoError(t, c.Write(context.Background(), mculink.WriteRequest(testAddr, pattern(1500))))
	require.Len(t, reports, 2) // one per window
	last := reports[len(reports)-1]
	assert.Equal(t, DirectionWrite, last.Direction)
	assert.Equal(t, last.BytesTotal, last.BytesDone)
	assert.Equal(t, 4, last.Segments)
}

func TestClient_ReadProgress(t *testing.T) {
	var reports []Progress
	c, dev := newPair(t, WithProgress(func(p Progress) {
		if p.Direction == DirectionRead {
			reports = append(reports, p)
		}
	}))
	data := pattern(1500)
	dev.Preload(testAddr, data)

	_, err := c.Read(context.Background(), mculink.ReadRequest(testAddr, len(data)), len(data))
	require.NoError(t, err)
	require.Len(t, reports, 2) // one per read cycle
	assert.Equal(t, 1024, reports[0].BytesDone)
	assert.Equal(t, 1500, reports[1].BytesDone)
}

func TestClient_ContextCancel(t *testing.T) {
	c, dev := newPair(t)
	dev.AlwaysBusy(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Write(ctx, mculink.WriteRequest(testAddr, pattern(10)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_InvalidParams(t *testing.T) {
	dev := mcusim.New(protocol.DefaultParams(), 64)
	_, err := New(dev, WithWindowSize(0))
	assert.Error(t, err)
}
