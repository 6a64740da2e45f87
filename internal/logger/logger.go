package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON logger tagged with the emitting binary. Both the API
// and the migration command log through this so output stays greppable by
// service.
func New(service string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

// LevelFor maps the deployment environment onto a log level: development
// runs at debug, everything else at info.
func LevelFor(environment string) slog.Level {
	if environment == "development" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
