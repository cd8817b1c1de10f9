// Package ble adapts an established GATT connection to the transfer
// transport: wire segments go out through the command characteristic as
// writes-without-response, deliveries arrive as notifications on the
// notify characteristic. Scanning, connecting and pairing stay with the
// caller.
package ble

import (
	"context"
	"fmt"
	"sync/atomic"

	"tinygo.org/x/bluetooth"

	"github.com/mklimuk/mculink"
)

type Link struct {
	device   bluetooth.Device
	cmd      bluetooth.DeviceCharacteristic
	notify   bluetooth.DeviceCharacteristic
	attached atomic.Bool
}

var _ mculink.Transport = (*Link)(nil)

// Attach discovers the transfer service on an already connected device,
// hooks the notification stream to deliver and returns the ready link.
func Attach(device bluetooth.Device, service, cmdChar, notifyChar bluetooth.UUID, deliver mculink.DeliveryFunc) (*Link, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{service})
	if err != nil {
		return nil, fmt.Errorf("could not discover services: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("device does not expose service %s", service.String())
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{cmdChar, notifyChar})
	if err != nil {
		return nil, fmt.Errorf("could not discover characteristics: %w", err)
	}
	l := &Link{device: device}
	var haveCmd, haveNotify bool
	for _, char := range chars {
		if char.UUID() == cmdChar {
			l.cmd = char
			haveCmd = true
		}
		if char.UUID() == notifyChar {
			l.notify = char
			haveNotify = true
		}
	}
	if !haveCmd || !haveNotify {
		return nil, fmt.Errorf("expected command and notify characteristics, found %d", len(chars))
	}
	err = l.notify.EnableNotifications(func(buf []byte) {
		deliver(buf)
	})
	if err != nil {
		return nil, fmt.Errorf("could not enable notifications: %w", err)
	}
	l.attached.Store(true)
	return l, nil
}

// Send pushes one wire segment through the command characteristic.
func (l *Link) Send(ctx context.Context, segment []byte) error {
	if !l.attached.Load() {
		return mculink.ErrNotReachable
	}
	if _, err := l.cmd.WriteWithoutResponse(segment); err != nil {
		return fmt.Errorf("%w: %s", mculink.ErrSendRejected, err)
	}
	return nil
}

func (l *Link) Reachable(ctx context.Context) bool {
	return l.attached.Load()
}

// Detach stops treating the link as reachable. The connection itself is
// the caller's to tear down.
func (l *Link) Detach() {
	l.attached.Store(false)
}
