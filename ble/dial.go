package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/mklimuk/mculink"
)

// Endpoint names the GATT surface of a transfer-capable peripheral.
type Endpoint struct {
	// NamePrefix selects the advertiser during the scan.
	NamePrefix string
	Service    bluetooth.UUID
	Command    bluetooth.UUID
	Notify     bluetooth.UUID
}

// Dial scans for the first advertiser matching the endpoint's name prefix,
// connects and attaches the transfer link. The scan runs until a match or
// context cancellation.
func Dial(ctx context.Context, adapter *bluetooth.Adapter, ep Endpoint, deliver mculink.DeliveryFunc) (*Link, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("could not enable bluetooth adapter: %w", err)
	}
	var once sync.Once
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			if name == "" || !strings.HasPrefix(name, ep.NamePrefix) {
				return
			}
			once.Do(func() { found <- result })
		})
	}()
	select {
	case result := <-found:
		_ = adapter.StopScan()
		device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
		if err != nil {
			return nil, fmt.Errorf("could not connect to %s: %w", result.Address.String(), err)
		}
		return Attach(device, ep.Service, ep.Command, ep.Notify, deliver)
	case err := <-scanErr:
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		return nil, fmt.Errorf("scan stopped before finding %q", ep.NamePrefix)
	case <-ctx.Done():
		_ = adapter.StopScan()
		return nil, ctx.Err()
	}
}
