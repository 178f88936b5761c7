package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a structured logger appropriate for the environment.
// Production uses JSON at info level, development uses human-readable
// text at debug level. verbose forces debug in production too.
func NewLogger(env string, verbose bool) *slog.Logger {
	return newLogger(os.Stderr, env, verbose)
}

func newLogger(w io.Writer, env string, verbose bool) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		if verbose {
			opts.Level = slog.LevelDebug
		}

		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
