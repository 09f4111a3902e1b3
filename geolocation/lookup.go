package geolocation

import (
	"context"

	"github.com/turbot/edgar-log-pipeline/types"
)

// Lookup resolves the location of an address.
// A lookup with no result returns types.ErrLocationNotFound.
type Lookup interface {
	Lookup(ctx context.Context, ip string) (types.Location, error)
}
