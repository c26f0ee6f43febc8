package log

import (
	"log/slog"
	"strings"
)

// LevelFromString parses a log level from its string representation.
// The match is case-insensitive. Unrecognised strings return LevelInfo.
func LevelFromString(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromVerbosity maps a numeric verbosity flag (0-5, geth style) to a
// slog.Level. 0 silences everything below Error, 3 is the Info default,
// 4 and above enable Debug.
func LevelFromVerbosity(v int) slog.Level {
	switch {
	case v <= 1:
		return slog.LevelError
	case v == 2:
		return slog.LevelWarn
	case v == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
