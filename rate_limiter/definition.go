package rate_limiter

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

type Definition struct {
	// the limiter name
	Name string
	// requests per second; zero means no rate limit
	FillRate   rate.Limit
	BucketSize int
	// the max concurrency supported; zero means unlimited
	MaxConcurrency int64
}

func (d *Definition) String() string {
	var parts []string
	if d.FillRate > 0 {
		parts = append(parts, fmt.Sprintf("Limit(/s): %v, Burst: %d", d.FillRate, d.BucketSize))
	}
	if d.MaxConcurrency > 0 {
		parts = append(parts, fmt.Sprintf("MaxConcurrency: %d", d.MaxConcurrency))
	}
	return strings.Join(parts, " ")
}

func (d *Definition) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("rate limiter definition must specify a name"))
	}
	if d.FillRate < 0 || d.BucketSize < 0 || d.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("rate limiter %s: limits must not be negative", d.Name))
	}
	if d.FillRate > 0 && d.BucketSize == 0 {
		errs = append(errs, fmt.Errorf("rate limiter %s: a rate limit requires a bucket size", d.Name))
	}
	return errors.Join(errs...)
}
