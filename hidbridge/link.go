// Package hidbridge drives the transfer protocol through a USB-HID bridge
// dongle that relays frames to the device in fixed-size input/output
// reports. Use it with a segment size equal to the report size so one
// wire segment maps to one report.
package hidbridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/karalabe/hid"

	"github.com/mklimuk/mculink"
)

const ReportSize = 64

type Link struct {
	mx     sync.Mutex
	dev    *hid.Device
	open   bool
	closed chan struct{}
}

var _ mculink.Transport = (*Link)(nil)

// Open claims the first HID bridge matching the vendor/product pair and
// starts relaying its input reports to deliver.
func Open(vendorID, productID uint16, deliver mculink.DeliveryFunc) (*Link, error) {
	devs := hid.Enumerate(vendorID, productID)
	if len(devs) == 0 {
		return nil, fmt.Errorf("no HID bridge with vendor %#x product %#x", vendorID, productID)
	}
	if len(devs) > 1 {
		return nil, fmt.Errorf("ambiguous device identification: %d bridges found", len(devs))
	}
	dev, err := devs[0].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	l := &Link{dev: dev, open: true, closed: make(chan struct{})}
	go l.readLoop(deliver)
	return l, nil
}

func (l *Link) readLoop(deliver mculink.DeliveryFunc) {
	buf := make([]byte, ReportSize)
	for {
		select {
		case <-l.closed:
			return
		default:
		}
		n, err := l.dev.Read(buf)
		if err != nil {
			slog.Debug("bridge read loop stopped", "error", err)
			l.mx.Lock()
			l.open = false
			l.mx.Unlock()
			return
		}
		if n > 0 {
			deliver(append([]byte(nil), buf[:n]...))
		}
	}
}

// Send relays one wire segment as a single output report.
func (l *Link) Send(ctx context.Context, segment []byte) error {
	if len(segment) > ReportSize {
		return fmt.Errorf("%w: segment of %d bytes exceeds report size", mculink.ErrSendRejected, len(segment))
	}
	l.mx.Lock()
	defer l.mx.Unlock()
	if !l.open {
		return mculink.ErrNotReachable
	}
	report := make([]byte, ReportSize)
	copy(report, segment)
	n, err := l.dev.Write(report)
	if err != nil {
		return fmt.Errorf("%w: %s", mculink.ErrSendRejected, err)
	}
	if n != ReportSize {
		return fmt.Errorf("%w: short write: %d", mculink.ErrSendRejected, n)
	}
	return nil
}

func (l *Link) Reachable(ctx context.Context) bool {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.open
}

func (l *Link) Close() error {
	l.mx.Lock()
	defer l.mx.Unlock()
	if !l.open {
		return nil
	}
	l.open = false
	close(l.closed)
	return l.dev.Close()
}
