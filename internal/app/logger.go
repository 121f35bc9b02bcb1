package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger shared by the API and the worker.
// LOG_FORMAT=json selects JSON output for log aggregation in deployment;
// anything else falls back to the text handler for local runs. Source
// locations are always attached since transition denials are debugged
// from these lines.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
