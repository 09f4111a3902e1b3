package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/turbot/edgar-log-pipeline/bot_filter"
	"github.com/turbot/edgar-log-pipeline/collection_state"
	"github.com/turbot/edgar-log-pipeline/constants"
	"github.com/turbot/edgar-log-pipeline/context_values"
	"github.com/turbot/edgar-log-pipeline/enrichment"
	"github.com/turbot/edgar-log-pipeline/events"
	"github.com/turbot/edgar-log-pipeline/filepaths"
	"github.com/turbot/edgar-log-pipeline/helpers"
	"github.com/turbot/edgar-log-pipeline/logging"
	"github.com/turbot/edgar-log-pipeline/observable"
	"github.com/turbot/edgar-log-pipeline/table"
	"github.com/turbot/edgar-log-pipeline/types"
	kithelpers "github.com/turbot/go-kit/helpers"
)

// Deps are the stage implementations used by a Pipeline
type Deps struct {
	Layout       filepaths.Layout
	Fetcher      Fetcher
	Extractor    Extractor
	Converter    *table.Converter
	Filter       *bot_filter.Filter
	Enricher     *enrichment.Enricher
	Standardizer *enrichment.CountryStandardizer
}

func (d Deps) validate() error {
	var missing []string
	if d.Layout.BaseDir == "" {
		missing = append(missing, "layout")
	}
	if d.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if d.Extractor == nil {
		missing = append(missing, "extractor")
	}
	if d.Converter == nil {
		missing = append(missing, "converter")
	}
	if d.Filter == nil {
		missing = append(missing, "filter")
	}
	if d.Enricher == nil {
		missing = append(missing, "enricher")
	}
	if d.Standardizer == nil {
		missing = append(missing, "standardizer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("pipeline is missing dependencies: %v", missing)
	}
	return nil
}

// stageFunc transforms the artifact at input into the artifact at output.
// input is empty for the first stage.
type stageFunc func(ctx context.Context, date time.Time, input, output string) (map[string]int, error)

// Pipeline runs the stages for each date in order, persisting the status of every stage
// in the date's ledger. It is the only component aware of the directory layout.
type Pipeline struct {
	observable.Base

	deps        Deps
	force       bool
	executionId string
	now         func() time.Time

	stages map[string]stageFunc
}

func New(deps Deps, opts ...PipelineOption) (*Pipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		deps: deps,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stages = map[string]stageFunc{
		constants.StageFetch:      p.fetch,
		constants.StageExtract:    p.extract,
		constants.StageConvert:    p.convert,
		constants.StageFilterBots: p.filterBots,
		constants.StageEnrich:     p.enrich,
		constants.StageFinalize:   p.finalize,
	}
	return p, nil
}

// Run processes every date from start to end inclusive, sequentially.
// A failed date does not stop the run; a cancelled context does.
func (p *Pipeline) Run(ctx context.Context, start, end time.Time) (*RunSummary, error) {
	dates, err := helpers.DateRange(start, end)
	if err != nil {
		return nil, err
	}
	if p.executionId == "" {
		if id, err := context_values.ExecutionIdFromContext(ctx); err == nil {
			p.executionId = id
		}
	}

	summary := &RunSummary{ExecutionId: p.executionId}
	for _, date := range dates {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		res := p.ProcessDate(ctx, date)
		summary.Dates = append(summary.Dates, res)
	}
	if ctx.Err() != nil {
		summary.Cancelled = true
	}
	return summary, nil
}

// ProcessDate runs every incomplete stage for date.
// A stage whose artifact is complete is skipped unless force is set. When a stage
// reruns over an interrupted or failed attempt, its later stages are rebuilt too,
// since their artifacts may derive from the partial output.
func (p *Pipeline) ProcessDate(ctx context.Context, date time.Time) *DateResult {
	dateStr := helpers.FormatDate(date)
	ctx = context_values.WithDate(ctx, dateStr)
	logger := logging.FromContext(ctx)

	res := &DateResult{
		Date:   dateStr,
		Timing: types.NewTimingCollection(),
	}
	start := p.now()
	defer func() {
		res.Duration = p.now().Sub(start)
		p.notify(ctx, events.NewDateCompletedEvent(p.executionId, dateStr, res.Duration, res.Err))
	}()

	ledger, err := collection_state.Load(p.deps.Layout.LedgerPath(dateStr), dateStr)
	if err != nil {
		res.Err = err
		logger.Error("failed to load ledger", "error", err)
		return res
	}
	ledger.SetExecutionId(p.executionId)

	var input string
	invalidated := false
	for _, stage := range constants.Stages {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		output, err := p.deps.Layout.ArtifactPath(stage, dateStr)
		if err != nil {
			res.Err = err
			return res
		}

		if !p.force && !invalidated && p.isComplete(ledger, stage, output) {
			if !ledger.HasEntry(stage) {
				// artifact placed outside the pipeline, e.g. a manual download
				logger.Info("adopting existing artifact", "stage", stage, "artifact", output)
				if err := ledger.MarkDone(stage, output); err != nil {
					res.Err = err
					return res
				}
			}
			logger.Debug("stage already complete, skipping", "stage", stage)
			res.Skipped = append(res.Skipped, stage)
			p.notify(ctx, events.NewStageSkippedEvent(p.executionId, dateStr, stage, output))
			input = output
			continue
		}

		interrupted := isInterrupted(ledger.Status(stage))
		if err := p.runStage(ctx, ledger, res, date, stage, input, output); err != nil {
			res.Err = err
			res.FailedStage = stage
			logger.Error("stage failed", "stage", stage, "error", err)
			return res
		}
		invalidated = invalidated || interrupted
		input = output
	}

	logger.Info("date complete", "ran", res.Ran, "skipped", res.Skipped)
	return res
}

// isComplete returns whether the artifact for stage exists and the ledger
// does not record an interrupted or failed attempt
func (p *Pipeline) isComplete(ledger *collection_state.Ledger, stage, artifact string) bool {
	return filepaths.FileExists(artifact) && !isInterrupted(ledger.Status(stage))
}

func isInterrupted(status collection_state.StageStatus) bool {
	return status == collection_state.StatusInProgress || status == collection_state.StatusFailed
}

func (p *Pipeline) runStage(ctx context.Context, ledger *collection_state.Ledger, res *DateResult, date time.Time, stage, input, output string) error {
	dateStr := res.Date
	if input != "" && !filepaths.FileExists(input) {
		err := &types.StageError{Date: dateStr, Stage: stage, Err: fmt.Errorf("%w: %s", types.ErrMissingInput, input)}
		p.notify(ctx, events.NewStageFailedEvent(p.executionId, dateStr, stage, 0, err))
		p.markFailed(ledger, stage, output, err)
		return err
	}

	p.notify(ctx, events.NewStageStartedEvent(p.executionId, dateStr, stage, filepaths.FileExists(output)))
	if err := ledger.MarkInProgress(stage, output); err != nil {
		return &types.StageError{Date: dateStr, Stage: stage, Err: err}
	}

	timing := types.Timing{Start: p.now()}
	counts, err := p.invoke(ctx, stage, date, input, output)
	timing.End = p.now()
	res.Timing.Add(stage, timing)
	res.Ran = append(res.Ran, stage)

	if err != nil {
		stageErr := &types.StageError{Date: dateStr, Stage: stage, Err: err}
		p.notify(ctx, events.NewStageFailedEvent(p.executionId, dateStr, stage, timing.Duration(), stageErr))
		p.markFailed(ledger, stage, output, err)
		return stageErr
	}

	if err := ledger.MarkDone(stage, output); err != nil {
		return &types.StageError{Date: dateStr, Stage: stage, Err: err}
	}
	p.notify(ctx, events.NewStageCompletedEvent(p.executionId, dateStr, stage, output, timing.Duration(), counts))
	return nil
}

func (p *Pipeline) markFailed(ledger *collection_state.Ledger, stage, output string, err error) {
	if ledgerErr := ledger.MarkFailed(stage, output, err); ledgerErr != nil {
		slog.Warn("failed to record stage failure", "date", ledger.Date, "stage", stage, "error", ledgerErr)
	}
}

// invoke calls the stage function, converting a panic into an error
func (p *Pipeline) invoke(ctx context.Context, stage string, date time.Time, input, output string) (counts map[string]int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %w", kithelpers.ToError(r))
		}
	}()
	return p.stages[stage](ctx, date, input, output)
}

func (p *Pipeline) notify(ctx context.Context, e events.Event) {
	if err := p.NotifyObservers(ctx, e); err != nil {
		slog.Warn("failed to notify observers", "error", err)
	}
}

func (p *Pipeline) fetch(ctx context.Context, date time.Time, _, output string) (map[string]int, error) {
	if err := p.deps.Fetcher.Fetch(ctx, date, output); err != nil {
		return nil, err
	}
	return nil, nil
}

func (p *Pipeline) extract(ctx context.Context, _ time.Time, input, output string) (map[string]int, error) {
	if err := p.deps.Extractor.Extract(ctx, input, output); err != nil {
		return nil, err
	}
	return nil, nil
}

func (p *Pipeline) convert(ctx context.Context, _ time.Time, input, output string) (map[string]int, error) {
	stats, err := p.deps.Converter.Convert(ctx, input, output)
	if err != nil {
		return nil, err
	}
	return stats.Counts(), nil
}

func (p *Pipeline) filterBots(ctx context.Context, _ time.Time, input, output string) (map[string]int, error) {
	stats, err := p.deps.Filter.FilterFile(ctx, input, output)
	if err != nil {
		return nil, err
	}
	return stats.Counts(), nil
}

func (p *Pipeline) enrich(ctx context.Context, _ time.Time, input, output string) (map[string]int, error) {
	stats, err := p.deps.Enricher.EnrichFile(ctx, input, output)
	if err != nil {
		return nil, err
	}
	return stats.Counts(), nil
}

func (p *Pipeline) finalize(ctx context.Context, _ time.Time, input, output string) (map[string]int, error) {
	stats, err := p.deps.Standardizer.StandardizeFile(ctx, input, output)
	if err != nil {
		return nil, err
	}
	return stats.Counts(), nil
}
