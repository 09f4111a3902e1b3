package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/turbot/edgar-log-pipeline/events"
)

const namespace = "edgar_logs"

// Collector is a pipeline observer which records stage outcomes and statistics
// in its own prometheus registry
type Collector struct {
	registry *prometheus.Registry

	stages        *prometheus.CounterVec
	stageDuration *prometheus.SummaryVec
	stageCounts   *prometheus.CounterVec
	dates         *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.stages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stages_total",
		Help:      "Stage executions by stage and outcome (completed, skipped, failed).",
	}, []string{"stage", "outcome"})
	c.stageDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Time taken by stages which ran.",
	}, []string{"stage"})
	c.stageCounts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_items_total",
		Help:      "Stage statistics (rows read, rows dropped, bot addresses, lookups) by stage and kind.",
	}, []string{"stage", "kind"})
	c.dates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dates_total",
		Help:      "Dates processed by outcome (succeeded, failed).",
	}, []string{"outcome"})
	c.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time at which a date last completed successfully.",
	})

	c.registry.MustRegister(c.stages, c.stageDuration, c.stageCounts, c.dates, c.lastSuccess)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Notify(_ context.Context, e events.Event) error {
	switch ev := e.(type) {
	case *events.StageSkipped:
		c.stages.WithLabelValues(ev.Stage, "skipped").Inc()
	case *events.StageCompleted:
		c.stages.WithLabelValues(ev.Stage, "completed").Inc()
		c.stageDuration.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())
		for kind, n := range ev.Counts {
			c.stageCounts.WithLabelValues(ev.Stage, kind).Add(float64(n))
		}
	case *events.StageFailed:
		c.stages.WithLabelValues(ev.Stage, "failed").Inc()
		c.stageDuration.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())
	case *events.DateCompleted:
		if ev.Err != nil {
			c.dates.WithLabelValues("failed").Inc()
		} else {
			c.dates.WithLabelValues("succeeded").Inc()
			c.lastSuccess.SetToCurrentTime()
		}
	}
	return nil
}

// WriteTextfile writes every metric to path in the text exposition format
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
