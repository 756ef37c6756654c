// Package observability provides structured logging and OpenTelemetry
// tracing setup for the cache engine.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// LoggerConfig contains configuration for the logger.
type LoggerConfig struct {
	Level      slog.Level
	Output     io.Writer
	AddSource  bool
	JSONFormat bool
}

// NewLogger creates a structured logger. JSONFormat selects JSON output,
// suited to services; otherwise it writes text, which is easier on a terminal.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}
