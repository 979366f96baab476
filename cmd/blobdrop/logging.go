package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const logLevelEnvKey = "BLOBDROP_LOG_LEVEL"

// configureLogger selects the level from flag > env > config and
// installs the default logger.
func configureLogger(flagLevel, configLevel string) error {
	raw := flagLevel
	if strings.TrimSpace(raw) == "" {
		raw = os.Getenv(logLevelEnvKey)
	}
	if strings.TrimSpace(raw) == "" {
		raw = configLevel
	}

	level, err := parseLogLevel(raw)
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(level))
	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return slog.LevelInfo, nil
	}
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
