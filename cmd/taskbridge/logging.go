package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"taskbridge/internal/config"
)

const (
	logLevelEnvKey  = "TASKBRIDGE_LOG_LEVEL"
	logFormatEnvKey = "TASKBRIDGE_LOG_FORMAT"
)

// levelSource records where the effective log level came from, so a bad
// flag can fail hard while a bad env or config value only warns.
type levelSource string

const (
	levelFromFlag    levelSource = "flag"
	levelFromEnv     levelSource = "env"
	levelFromConfig  levelSource = "config"
	levelFromDefault levelSource = "default"
)

func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	envLevel := os.Getenv(logLevelEnvKey)
	raw, source := selectedLogLevel(flagLevel, envLevel, configLevel)

	level, err := parseLogLevel(raw)
	if err == nil {
		slog.SetDefault(newLogger(os.Stderr, level, os.Getenv(logFormatEnvKey)))
		return "", nil
	}

	if source == levelFromFlag {
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	}
	slog.SetDefault(newLogger(os.Stderr, slog.LevelDebug, os.Getenv(logFormatEnvKey)))

	var offending string
	switch source {
	case levelFromEnv:
		offending = fmt.Sprintf("%s=%q", logLevelEnvKey, envLevel)
	case levelFromConfig:
		offending = fmt.Sprintf("log_level=%q", configLevel)
	default:
		return "", nil
	}
	return fmt.Sprintf("warning: invalid %s; defaulting to %s", offending, config.DefaultLogLevel), nil
}

func selectedLogLevel(flagLevel, envLevel, configLevel string) (string, levelSource) {
	switch {
	case strings.TrimSpace(flagLevel) != "":
		return flagLevel, levelFromFlag
	case strings.TrimSpace(envLevel) != "":
		return envLevel, levelFromEnv
	case strings.TrimSpace(configLevel) != "":
		return configLevel, levelFromConfig
	default:
		return "", levelFromDefault
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		return slog.LevelDebug, nil
	case "warning":
		value = "warn"
	}

	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelDebug, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger writes text logs unless format is "json".
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
