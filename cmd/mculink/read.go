package main

import (
	"context"
	"encoding/hex"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mculink"
	"github.com/mklimuk/mculink/cmd/mculink/console"
)

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "transfer device memory to a file or stdout",
	Flags: append([]cli.Flag{
		&cli.UintFlag{Name: "address", Aliases: []string{"a"}, Usage: "source memory address", Required: true},
		&cli.IntFlag{Name: "length", Aliases: []string{"l"}, Usage: "number of bytes to read", Required: true},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file; hex dump to stdout when absent"},
	}, transportFlags...),
	Action: func(c *cli.Context) error {
		length := c.Int("length")
		if length <= 0 || length > 0xFFFF {
			return console.Exit(1, "length out of range: %d", length)
		}
		out := c.String("out")
		if out != "" {
			if _, err := os.Stat(out); err == nil && !console.Confirm(out+" exists, overwrite?") {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		cfg, err := LoadConfig(c.String("config"))
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		addr := uint32(c.Uint("address"))
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		client, closer, err := connect(ctx, c, cfg)
		if err != nil {
			return console.Exit(1, "could not reach endpoint: %s", console.Red(err))
		}
		defer closer()

		start := time.Now()
		data, err := client.Read(ctx, mculink.ReadRequest(addr, length), length)
		if err != nil {
			return console.Exit(1, "transfer error: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "read %s bytes from %#x in %s",
			console.Bold(len(data)), addr, time.Since(start).Round(time.Millisecond))
		if out == "" {
			console.Print(hex.Dump(data))
			return nil
		}
		if err = os.WriteFile(out, data, 0o644); err != nil {
			return console.Exit(1, "could not write %s: %s", out, console.Red(err))
		}
		console.PInfof(console.PictoPin, "saved to %s", out)
		return nil
	},
}
