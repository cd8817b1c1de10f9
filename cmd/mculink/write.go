package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mculink"
	"github.com/mklimuk/mculink/cmd/mculink/console"
)

var writeCmd = cli.Command{
	Name:    "write",
	Aliases: []string{"wr"},
	Usage:   "transfer a file or hex string into device memory",
	Flags: append([]cli.Flag{
		&cli.UintFlag{Name: "address", Aliases: []string{"a"}, Usage: "target memory address", Required: true},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "file to transfer"},
		&cli.StringFlag{Name: "data", Usage: "hex bytes to write (e.g. '01FF23')"},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip confirmation"},
	}, transportFlags...),
	Action: func(c *cli.Context) error {
		data, err := writePayload(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		addr := uint32(c.Uint("address"))
		if !c.Bool("yes") && !console.Confirm(fmt.Sprintf("write %d bytes at %#x?", len(data), addr)) {
			console.PInfof(console.PictoStop, "aborted")
			return nil
		}
		cfg, err := LoadConfig(c.String("config"))
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		client, closer, err := connect(ctx, c, cfg)
		if err != nil {
			return console.Exit(1, "could not reach endpoint: %s", console.Red(err))
		}
		defer closer()

		start := time.Now()
		if err = client.Write(ctx, mculink.WriteRequest(addr, data)); err != nil {
			return console.Exit(1, "transfer error: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "wrote %s bytes at %#x in %s",
			console.Bold(len(data)), addr, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// writePayload resolves the payload from the file or data flag; exactly
// one must be set.
func writePayload(c *cli.Context) ([]byte, error) {
	file, data := c.String("file"), c.String("data")
	switch {
	case file != "" && data != "":
		return nil, fmt.Errorf("file and data flags are mutually exclusive")
	case file != "":
		payload, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", file, err)
		}
		return payload, nil
	case data != "":
		payload, err := hex.DecodeString(strings.ReplaceAll(data, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid data hex string: %w", err)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("either the file or the data flag is required")
}
