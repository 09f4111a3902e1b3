package events

import "time"

type StageStarted struct {
	Base
	ExecutionId string
	Date        string
	Stage       string
	// Forced is true when the stage runs even though its artifact already existed
	Forced bool
}

func NewStageStartedEvent(executionId, date, stage string, forced bool) *StageStarted {
	return &StageStarted{
		ExecutionId: executionId,
		Date:        date,
		Stage:       stage,
		Forced:      forced,
	}
}

type StageSkipped struct {
	Base
	ExecutionId string
	Date        string
	Stage       string
	Artifact    string
}

func NewStageSkippedEvent(executionId, date, stage, artifact string) *StageSkipped {
	return &StageSkipped{
		ExecutionId: executionId,
		Date:        date,
		Stage:       stage,
		Artifact:    artifact,
	}
}

type StageCompleted struct {
	Base
	ExecutionId string
	Date        string
	Stage       string
	Artifact    string
	Duration    time.Duration
	// Counts holds the stage statistics, e.g. rows_read, bot_ips
	Counts map[string]int
}

func NewStageCompletedEvent(executionId, date, stage, artifact string, duration time.Duration, counts map[string]int) *StageCompleted {
	return &StageCompleted{
		ExecutionId: executionId,
		Date:        date,
		Stage:       stage,
		Artifact:    artifact,
		Duration:    duration,
		Counts:      counts,
	}
}

type StageFailed struct {
	Base
	ExecutionId string
	Date        string
	Stage       string
	Duration    time.Duration
	Err         error
}

func NewStageFailedEvent(executionId, date, stage string, duration time.Duration, err error) *StageFailed {
	return &StageFailed{
		ExecutionId: executionId,
		Date:        date,
		Stage:       stage,
		Duration:    duration,
		Err:         err,
	}
}
