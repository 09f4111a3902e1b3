package context_values

import (
	"context"
	"fmt"

	"github.com/turbot/pipe-fittings/contexthelpers"
)

var (
	contextKeyExecutionId = contexthelpers.ContextKey("execution_id")
	contextKeyDate        = contexthelpers.ContextKey("date")
)

// WithExecutionId adds the execution id to the context
func WithExecutionId(ctx context.Context, executionId string) context.Context {
	return context.WithValue(ctx, contextKeyExecutionId, executionId)
}

// WithDate adds the date being processed to the context
func WithDate(ctx context.Context, date string) context.Context {
	return context.WithValue(ctx, contextKeyDate, date)
}

// ExecutionIdFromContext returns the execution id from the context
func ExecutionIdFromContext(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("context is nil")
	}
	val, ok := ctx.Value(contextKeyExecutionId).(string)
	if !ok {
		return "", fmt.Errorf("no execution id in context")
	}
	return val, nil
}

// DateFromContext returns the date being processed, if set
func DateFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	val, ok := ctx.Value(contextKeyDate).(string)
	return val, ok
}
