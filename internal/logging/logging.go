package logging

import (
	"log/slog"
	"os"
)

// New returns a JSON logger tagged with the service name. Debug level is
// enabled outside production.
func New(service, env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" || env == "local" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}
