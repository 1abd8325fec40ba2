// Package logging configures the process-wide structured logger.
// It extends log/slog with the same extra severity levels rclone's
// fs/log package defines (Notice, Critical, Alert, Emergency) and a
// ReplaceAttr hook that lower-cases the level name the way rclone's
// mapLogLevelNames does, so log lines read "level=info msg=...".
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Extra severities, numbered the way fs/log places them relative to
// the standard slog levels: Debug(-4) < Info(0) < Notice(2) <
// Warn(4) < Error(8) < Critical < Alert < Emergency.
const (
	LevelNotice    slog.Level = 2
	LevelCritical  slog.Level = 12
	LevelAlert     slog.Level = 16
	LevelEmergency slog.Level = 20
)

// ParseCLILevel maps the CLI's -l/--log-level flag value onto a
// minimum slog.Level. Unknown strings fall back to Info.
func ParseCLILevel(name string) slog.Level {
	switch name {
	case "error":
		return slog.LevelError
	case "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "all":
		return slog.LevelDebug - 4
	default:
		return slog.LevelInfo
	}
}

// slogLevelToString renders lvl using the extended severity names,
// falling back to slog's own String() for anything unmapped.
func slogLevelToString(lvl slog.Level) string {
	switch lvl {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case slog.LevelWarn:
		return "WARNING"
	case slog.LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	case LevelAlert:
		return "ALERT"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return lvl.String()
	}
}

// mapLogLevelNames is a slog.HandlerOptions.ReplaceAttr hook: it
// rewrites the level attribute to the lower-cased extended name and
// leaves every other attribute untouched.
func mapLogLevelNames(_ []string, a slog.Attr) slog.Attr {
	if slog.LevelKey != a.Key {
		return a
	}

	lvl, ok := a.Value.Any().(slog.Level)

	if !ok {
		return a
	}

	a.Value = slog.StringValue(strings.ToLower(slogLevelToString(lvl)))

	return a
}

// New builds the process-wide logger at the given minimum level,
// writing to w with mapLogLevelNames installed.
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: mapLogLevelNames,
	})

	return slog.New(handler)
}

// Notice logs at the Notice severity, between Info and Warn.
func Notice(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logger.Log(ctx, LevelNotice, msg, args...)
}
