package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/turbot/edgar-log-pipeline/constants"
	"github.com/turbot/edgar-log-pipeline/context_values"
	"github.com/turbot/pipe-fittings/sanitize"
)

const sourceName = "edgar-logs"

func Initialize(executionId string) {
	slog.SetDefault(NewLogger(os.Stderr, getLogLevel()).With("execution_id", executionId))
}

// NewLogger returns a JSON logger which sanitizes log entries
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	if level == constants.LogLevelOff {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	}

	handlerOptions := &slog.HandlerOptions{
		Level: level,

		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			sanitized := sanitize.Instance.SanitizeKeyValue(a.Key, a.Value.Any())

			return slog.Attr{
				Key:   a.Key,
				Value: slog.AnyValue(sanitized),
			}
		},
	}
	return slog.New(slog.NewJSONHandler(w, handlerOptions)).With("source", sourceName)
}

// FromContext returns the default logger, with the date being processed if the context carries one
func FromContext(ctx context.Context) *slog.Logger {
	if date, ok := context_values.DateFromContext(ctx); ok {
		return slog.Default().With("date", date)
	}
	return slog.Default()
}

func getLogLevel() slog.Leveler {
	return ParseLevel(os.Getenv(constants.EnvLogLevel))
}

// ParseLevel converts a level name to a slog level, defaulting to info
func ParseLevel(levelName string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelName)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "off":
		return constants.LogLevelOff
	default:
		return slog.LevelInfo
	}
}
