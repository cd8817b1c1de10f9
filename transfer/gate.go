package transfer

import (
	"context"
	"sync"
	"time"
)

// Gate is the single-slot synchronization point between the transfer loop
// and the transport's delivery callback. The transport fills the slot once
// per delivery; the loop empties it on consumption. There is no queueing:
// a delivery finding the slot occupied is a protocol error.
type Gate struct {
	mx    sync.Mutex
	slot  []byte
	full  bool
	ready chan struct{}
}

func NewGate() *Gate {
	return &Gate{ready: make(chan struct{}, 1)}
}

// Deliver copies data into the slot and releases at most one waiter.
func (g *Gate) Deliver(data []byte) error {
	g.mx.Lock()
	if g.full {
		g.mx.Unlock()
		return ErrUnexpectedDelivery
	}
	g.slot = append([]byte(nil), data...)
	g.full = true
	g.mx.Unlock()
	select {
	case g.ready <- struct{}{}:
	default:
	}
	return nil
}

// Wait blocks until the next delivery, the timeout, or context
// cancellation. The timeout is the protocol's only cancellation mechanism
// besides the context; expiry yields ErrWaitTimeout, never an indefinite
// block.
func (g *Gate) Wait(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		g.mx.Lock()
		if g.full {
			data := g.slot
			g.slot = nil
			g.full = false
			g.mx.Unlock()
			return data, nil
		}
		g.mx.Unlock()
		select {
		case <-g.ready:
		case <-timer.C:
			return nil, ErrWaitTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
