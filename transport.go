package mculink

import (
	"context"
	"fmt"
)

var ErrNotReachable = fmt.Errorf("endpoint is not reachable")
var ErrSendRejected = fmt.Errorf("transport rejected the send")

// DeliveryFunc receives raw byte buffers produced asynchronously by the
// remote endpoint. The transport owns the buffer only for the duration of
// the call; implementations must copy what they keep.
type DeliveryFunc func(data []byte)

// Sender pushes one wire segment towards the remote endpoint. The segment
// is accepted for transmission or rejected outright; completion on the
// device side is reported asynchronously through the DeliveryFunc.
type Sender interface {
	Send(ctx context.Context, segment []byte) error
}

// Prober answers whether the fixed endpoint behind the transport is
// currently reachable. Unreachable endpoints are a precondition failure,
// never a retryable one.
type Prober interface {
	Reachable(ctx context.Context) bool
}

// Transport is the narrow asynchronous channel the transfer protocol runs
// on: send up to a segment's worth of bytes, receive deliveries whenever
// the endpoint produces them. Transports are bound to a single endpoint
// for their lifetime.
type Transport interface {
	Sender
	Prober
}
