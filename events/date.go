package events

import "time"

type DateCompleted struct {
	Base
	ExecutionId string
	Date        string
	Duration    time.Duration
	// Err is the stage error which aborted the date, if any
	Err error
}

func NewDateCompletedEvent(executionId, date string, duration time.Duration, err error) *DateCompleted {
	return &DateCompleted{
		ExecutionId: executionId,
		Date:        date,
		Duration:    duration,
		Err:         err,
	}
}
