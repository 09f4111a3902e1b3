package rate_limiter

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// APILimiter bounds both the request rate and the number of in-flight requests to an API.
// Every successful Wait must be paired with a Release.
type APILimiter struct {
	Name string

	// underlying rate limiter
	limiter *rate.Limiter
	// semaphore to control concurrency
	sem *semaphore.Weighted
	def Definition
}

func NewAPILimiter(d *Definition) (*APILimiter, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	res := &APILimiter{
		Name: d.Name,
		def:  *d,
	}
	if d.FillRate > 0 {
		res.limiter = rate.NewLimiter(d.FillRate, d.BucketSize)
	}
	if d.MaxConcurrency > 0 {
		res.sem = semaphore.NewWeighted(d.MaxConcurrency)
	}
	return res, nil
}

func (l *APILimiter) String() string {
	return l.Name + ": " + l.def.String()
}

// Wait blocks until a request may be made or ctx is done
func (l *APILimiter) Wait(ctx context.Context) error {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			l.Release()
			return err
		}
	}
	return nil
}

func (l *APILimiter) Release() {
	if l.sem == nil {
		return
	}
	l.sem.Release(1)
}
