package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mculink"
	"github.com/mklimuk/mculink/cmd/mculink/console"
	"github.com/mklimuk/mculink/mcusim"
	"github.com/mklimuk/mculink/transfer"
)

var loopbackCmd = cli.Command{
	Name:  "loopback",
	Usage: "self-test the transfer stack against the in-process simulator",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}},
		&cli.IntFlag{Name: "size", Aliases: []string{"s"}, Value: 1500, Usage: "payload size in bytes"},
		&cli.IntFlag{Name: "busy", Usage: "number of busy answers to inject"},
		&cli.BoolFlag{Name: "corrupt", Usage: "corrupt one response to exercise the checksum retry"},
		&cli.DurationFlag{Name: "latency", Value: time.Millisecond, Usage: "per-segment delivery latency"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := LoadConfig(c.String("config"))
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		size := c.Int("size")
		if size <= 0 || size > 0xFFFF {
			return console.Exit(1, "size out of range: %d", size)
		}
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))

		dev := mcusim.New(cfg.Protocol, simMemory)
		client, err := transfer.New(dev,
			transfer.WithParams(cfg.Protocol),
			transfer.WithProgress(reportProgress))
		if err != nil {
			return console.Exit(1, "client setup error: %s", console.Red(err))
		}
		dev.Connect(client.Deliver)
		dev.Latency(c.Duration("latency"))
		if n := c.Int("busy"); n > 0 {
			dev.BusyTimes(n)
		}
		if c.Bool("corrupt") {
			dev.CorruptNextResponse()
		}

		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i)
		}
		const addr uint32 = 0x1000

		start := time.Now()
		if err = client.Write(ctx, mculink.WriteRequest(addr, payload)); err != nil {
			return console.Exit(1, "write leg failed: %s", console.Red(err))
		}
		echo, err := client.Read(ctx, mculink.ReadRequest(addr, size), size)
		if err != nil {
			return console.Exit(1, "read leg failed: %s", console.Red(err))
		}
		if !bytes.Equal(payload, echo) {
			return console.Exit(1, "payload mismatch after round trip")
		}
		if console.IsVerbose(ctx) {
			console.Print(hex.Dump(echo))
		}
		console.Infof("checks=%d reads=%d blocks=%d hints=%d",
			dev.Checks(), dev.Reads(), dev.Blocks(), dev.Hints())
		console.PInfof(console.PictoFinish, "%s bytes round-tripped in %s",
			console.Bold(size), time.Since(start).Round(time.Millisecond))
		return nil
	},
}
