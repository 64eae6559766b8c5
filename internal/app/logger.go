package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the portal's slog.Logger. LOG_FORMAT=json selects the
// machine-readable handler for production log shipping; anything else gets
// the text handler. Production additionally drops debug records.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
	} else {
		opts.Level = slog.LevelDebug
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
