package pipeline

import (
	"context"
	"log/slog"
	"slices"

	"github.com/turbot/edgar-log-pipeline/events"
	"golang.org/x/exp/maps"
)

// LogObserver logs pipeline events
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Notify(_ context.Context, e events.Event) error {
	switch ev := e.(type) {
	case *events.StageStarted:
		o.logger.Info("stage started", "date", ev.Date, "stage", ev.Stage, "overwrite", ev.Forced)
	case *events.StageSkipped:
		o.logger.Debug("stage skipped", "date", ev.Date, "stage", ev.Stage, "artifact", ev.Artifact)
	case *events.StageCompleted:
		args := []any{"date", ev.Date, "stage", ev.Stage, "artifact", ev.Artifact, "duration", ev.Duration}
		keys := maps.Keys(ev.Counts)
		slices.Sort(keys)
		for _, k := range keys {
			args = append(args, k, ev.Counts[k])
		}
		o.logger.Info("stage completed", args...)
	case *events.StageFailed:
		o.logger.Error("stage failed", "date", ev.Date, "stage", ev.Stage, "duration", ev.Duration, "error", ev.Err)
	case *events.DateCompleted:
		if ev.Err != nil {
			o.logger.Warn("date failed", "date", ev.Date, "duration", ev.Duration, "error", ev.Err)
		} else {
			o.logger.Info("date completed", "date", ev.Date, "duration", ev.Duration)
		}
	}
	return nil
}
