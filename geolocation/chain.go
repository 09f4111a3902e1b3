package geolocation

import (
	"context"
	"errors"

	"github.com/turbot/edgar-log-pipeline/types"
)

// Chain tries each lookup in order; the first location found wins.
// If none finds a location, ErrLocationNotFound is returned unless a lookup failed,
// in which case the failures are returned.
type Chain []Lookup

func (c Chain) Lookup(ctx context.Context, ip string) (types.Location, error) {
	var errs []error
	for _, l := range c {
		loc, err := l.Lookup(ctx, ip)
		if err == nil {
			return loc, nil
		}
		if ctx.Err() != nil {
			return types.Location{}, ctx.Err()
		}
		if !errors.Is(err, types.ErrLocationNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return types.Location{}, errors.Join(errs...)
	}
	return types.Location{}, types.ErrLocationNotFound
}
