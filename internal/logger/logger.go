package logger

import (
	"io"
	"log/slog"
	"os"
)

// InitLogger configures the application logger and installs it as the slog default.
func InitLogger(environment string, jsonOutput bool) *slog.Logger {
	return newLogger(os.Stdout, environment, jsonOutput)
}

func newLogger(w io.Writer, environment string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if environment == "development" {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
