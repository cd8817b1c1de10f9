package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mculink/cmd/mculink/console"
)

var pingCmd = cli.Command{
	Name:  "ping",
	Usage: "run a single check cycle against the endpoint",
	Flags: transportFlags,
	Action: func(c *cli.Context) error {
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
		if err = client.Ping(ctx); err != nil {
			return console.Exit(1, "endpoint did not answer: %s", console.Red(err))
		}
		console.PInfof(console.PictoPlug, "endpoint %s in %s", console.Green("answered"), time.Since(start).Round(time.Microsecond))
		return nil
	},
}
