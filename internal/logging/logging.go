package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, binaryName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", binaryName, sessionStart.Format("20060102_150405")),
	)
}

// NewZerolog builds the zerolog logger used by the database, Influx and
// dispatcher adapters.
func NewZerolog(w io.Writer, level string, component string) zerolog.Logger {
	return zerolog.New(w).
		Level(zerologLevel(parseLevel(level))).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
