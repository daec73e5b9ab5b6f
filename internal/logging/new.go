package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the configured backend ("slog" or "zap"). format is "json" or
// "text"; level is one of debug, info, warn, error. w is only used by the
// slog backend, zap writes to stderr.
func New(backend, format, level string, w io.Writer) (Logger, error) {
	switch strings.ToLower(backend) {
	case "", "slog":
		opts := &slog.HandlerOptions{Level: slogLevel(level)}
		var h slog.Handler
		if strings.EqualFold(format, "text") {
			h = slog.NewTextHandler(w, opts)
		} else {
			h = slog.NewJSONHandler(w, opts)
		}
		return NewSlogLogger(slog.New(h)), nil
	case "zap":
		var cfg zap.Config
		if strings.EqualFold(format, "text") {
			cfg = zap.NewDevelopmentConfig()
		} else {
			cfg = zap.NewProductionConfig()
		}
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		l, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("zap build: %w", err)
		}
		return NewZapLogger(l), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
