// Package logging installs the process-wide structured logger for stabled.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup wires a JSON slog handler on stdout, tags every line with the service
// name and deployment environment, and installs it as the default logger.
// Production runs log at info; any other environment logs at debug so RPC
// request traces stay visible during development.
func Setup(service, env string) *slog.Logger {
	env = strings.TrimSpace(env)
	level := slog.LevelDebug
	if env == "prod" || env == "production" {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(slog.String("service", strings.TrimSpace(service)))
	if env != "" {
		logger = logger.With(slog.String("env", env))
	}
	slog.SetDefault(logger)
	return logger
}
