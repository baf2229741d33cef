package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger based on configuration.
func NewLogger(cfg *Config) *slog.Logger {
	format := ""
	if cfg != nil {
		format = cfg.LogFormat
	}
	return NewLoggerTo(os.Stdout, format)
}

// NewLoggerTo builds a logger writing to w. The terminal viewer owns stdout, so
// it logs to a file instead.
func NewLoggerTo(w io.Writer, format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{AddSource: true}))
}
