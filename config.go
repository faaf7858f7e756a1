package streamc

import (
	"io"
	"log/slog"

	"github.com/go-logr/logr"

	"github.com/birdayz/streamc/kconfig"
)

// Option is a function that configures a Compiler
type Option func(*Compiler)

// WithLog sets the logger for the compiler
var WithLog = func(log *slog.Logger) Option {
	return func(c *Compiler) {
		c.log = log
	}
}

// WithLogr sets a logr logger for the compiler
var WithLogr = func(log logr.Logger) Option {
	return func(c *Compiler) {
		c.log = slog.New(logr.ToSlogHandler(log))
	}
}

// WithConfig sets the submission-time configuration
var WithConfig = func(cfg *kconfig.Config) Option {
	return func(c *Compiler) {
		c.cfg = cfg
	}
}

// WithMetrics enables Prometheus metrics
var WithMetrics = func(enabled bool) Option {
	return func(c *Compiler) {
		c.metrics = enabled
	}
}

// NullLogger creates a logger that discards all output
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
