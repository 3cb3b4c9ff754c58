package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// New creates a configured application logger.
// It writes to Stderr (to separate from Stdout flow UI/JSON-RPC).
// It standardizes common keys (e.g., "error" -> "err").
// Extra handlers receive every record as well (e.g. a JSON log file).
func New(level slog.Level, extra ...slog.Handler) *slog.Logger {
	return NewWithWriter(os.Stderr, level, extra...)
}

// NewWithWriter is New with an explicit primary destination.
func NewWithWriter(w io.Writer, level slog.Level, extra ...slog.Handler) *slog.Logger {
	primary := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: standardizeKeys,
	})
	if len(extra) == 0 {
		return slog.New(primary)
	}

	handlers := append([]slog.Handler{primary}, extra...)
	return slog.New(slogmulti.Fanout(handlers...))
}

// JSONHandler builds a JSON handler with the same key conventions as New.
func JSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: standardizeKeys,
	})
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a slog.Level.
// Unknown names yield slog.LevelInfo.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func standardizeKeys(groups []string, a slog.Attr) slog.Attr {
	// Standardize 'error' key to 'err'
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}
