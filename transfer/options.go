package transfer

import (
	"log/slog"
	"time"

	"github.com/mklimuk/mculink/protocol"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithParams replaces the whole protocol geometry. Validated by New.
func WithParams(p protocol.Params) Option {
	return func(c *Client) {
		c.params = p
	}
}

// WithWindowSize overrides the number of segments sent per burst.
func WithWindowSize(n int) Option {
	return func(c *Client) {
		c.params.WindowSize = n
	}
}

// WithTimeout overrides the bound on every wait for a delivery.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.params.NotifyTimeout = d
	}
}

// WithBusyRetries overrides the device-busy retry budget.
func WithBusyRetries(n int) Option {
	return func(c *Client) {
		c.params.BusyRetryMax = n
	}
}

// WithCrcRetries overrides the checksum-failure retry budget.
func WithCrcRetries(n int) Option {
	return func(c *Client) {
		c.params.CrcRetryMax = n
	}
}

// WithBusyBackoff overrides the delay before re-checking a busy device.
func WithBusyBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) {
		c.progress = fn
	}
}

// WithLogger replaces the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}
