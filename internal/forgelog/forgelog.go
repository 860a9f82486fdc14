// Package forgelog builds the zap.Logger used across the CLI and engine
// packages, resolving level and encoding from config.Config.
package forgelog

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build constructs a zap.Logger for the given level ("debug", "info",
// "warn", "error") and format ("console" or "json"). Unrecognized values
// fall back to info/console. colorize enables ANSI level coloring for the
// console encoder; callers decide it from a TTY check, since coloring a
// piped or redirected log stream just litters it with escape codes.
func Build(level, format string, colorize bool) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		if colorize {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync flushes buffered log entries, ignoring the common "inappropriate
// ioctl" error zap returns when syncing a terminal stdout/stderr.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}
