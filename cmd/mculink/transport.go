package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"tinygo.org/x/bluetooth"

	"github.com/mklimuk/mculink"
	"github.com/mklimuk/mculink/ble"
	"github.com/mklimuk/mculink/cmd/mculink/console"
	"github.com/mklimuk/mculink/hidbridge"
	"github.com/mklimuk/mculink/mcusim"
	"github.com/mklimuk/mculink/transfer"
)

// simMemory is the addressable memory of the in-process simulator.
const simMemory = 64 * 1024

var transportFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "yaml config file with protocol geometry and endpoint identity",
	},
	&cli.StringFlag{
		Name:    "transport",
		Aliases: []string{"t"},
		Value:   "usb",
		Usage:   "endpoint transport: usb, ble or sim",
	},
}

// connect opens the selected transport and builds a transfer client on top
// of it. The returned closer tears the transport down.
func connect(ctx context.Context, c *cli.Context, cfg Config) (*transfer.Client, func(), error) {
	// the transport needs the delivery callback before the client exists
	var client *transfer.Client
	deliver := func(data []byte) {
		if client != nil {
			client.Deliver(data)
		}
	}

	var transport mculink.Transport
	closer := func() {}
	switch kind := c.String("transport"); kind {
	case "usb":
		// the bridge carries one segment per fixed-size report
		if cfg.Protocol.SegmentSize > hidbridge.ReportSize {
			cfg.Protocol.SegmentSize = hidbridge.ReportSize
		}
		link, err := hidbridge.Open(cfg.USB.VendorID, cfg.USB.ProductID, deliver)
		if err != nil {
			return nil, nil, err
		}
		transport, closer = link, func() { _ = link.Close() }
	case "ble":
		ep, err := cfg.BLE.endpoint()
		if err != nil {
			return nil, nil, err
		}
		link, err := ble.Dial(ctx, bluetooth.DefaultAdapter, ep, deliver)
		if err != nil {
			return nil, nil, err
		}
		transport, closer = link, link.Detach
	case "sim":
		dev := mcusim.New(cfg.Protocol, simMemory)
		dev.Connect(deliver)
		transport = dev
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", kind)
	}

	client, err := transfer.New(transport,
		transfer.WithParams(cfg.Protocol),
		transfer.WithProgress(reportProgress))
	if err != nil {
		closer()
		return nil, nil, err
	}
	return client, closer, nil
}

func reportProgress(p transfer.Progress) {
	if p.BytesTotal == 0 {
		return
	}
	console.Infof("%s %d/%d bytes (%d%%)",
		p.Direction, p.BytesDone, p.BytesTotal, 100*p.BytesDone/p.BytesTotal)
}
