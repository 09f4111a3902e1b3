package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/turbot/edgar-log-pipeline/types"
	"github.com/turbot/pipe-fittings/utils"
)

// DateResult is the outcome of processing a single date
type DateResult struct {
	Date string
	// Ran lists the stages which executed, Skipped those whose artifact was already complete
	Ran     []string
	Skipped []string
	// FailedStage is set when Err is the failure of a stage
	FailedStage string
	Err         error
	Timing      *types.TimingCollection
	Duration    time.Duration
}

func (r *DateResult) Succeeded() bool {
	return r.Err == nil
}

// RunSummary lists the outcome of every date in a run, in date order
type RunSummary struct {
	ExecutionId string
	Dates       []*DateResult
	// Cancelled is true if the run stopped before processing every date
	Cancelled bool
}

func (s *RunSummary) Failed() []*DateResult {
	var res []*DateResult
	for _, d := range s.Dates {
		if !d.Succeeded() {
			res = append(res, d)
		}
	}
	return res
}

func (s *RunSummary) String() string {
	failed := len(s.Failed())
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("processed %d %s, %d succeeded, %d failed",
		len(s.Dates), utils.Pluralize("date", len(s.Dates)), len(s.Dates)-failed, failed))
	if s.Cancelled {
		sb.WriteString(" (cancelled)")
	}
	for _, d := range s.Dates {
		if d.Err != nil {
			sb.WriteString(fmt.Sprintf("\n  %s: %v", d.Date, d.Err))
		}
	}
	return sb.String()
}
