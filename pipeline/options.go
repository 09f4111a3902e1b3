package pipeline

import "time"

// PipelineOption is a function that can be used to configure a Pipeline
type PipelineOption func(*Pipeline)

// WithForce makes every stage rerun and overwrite its artifact
func WithForce(force bool) PipelineOption {
	return func(p *Pipeline) {
		p.force = force
	}
}

func WithExecutionId(executionId string) PipelineOption {
	return func(p *Pipeline) {
		p.executionId = executionId
	}
}

// WithClock overrides the clock used for stage timings
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}
