package geolocation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/turbot/edgar-log-pipeline/config"
	"github.com/turbot/edgar-log-pipeline/rate_limiter"
	"github.com/turbot/edgar-log-pipeline/types"
	typehelpers "github.com/turbot/go-kit/types"
	"golang.org/x/time/rate"
)

const geolocationDbLimiterName = "geolocation_db"

// Resolver is the lookup built from config, with the resources it holds
type Resolver struct {
	lookup Lookup
	store  *Store
}

func (r *Resolver) Lookup(ctx context.Context, ip string) (types.Location, error) {
	return r.lookup.Lookup(ctx, ip)
}

func (r *Resolver) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// NewFromConfig builds the lookup described by cfg: the local database (if configured) then
// the geolocation-db API (if a key is configured), behind the persistent cache (if configured).
func NewFromConfig(ctx context.Context, cfg *config.GeolocationConfig, httpClient *http.Client) (*Resolver, error) {
	var chain Chain

	if cfg.DatabasePath != nil {
		db, err := LoadDatabase(*cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		slog.Info("Loaded geolocation database", "path", *cfg.DatabasePath, "ranges", db.Len())
		chain = append(chain, db)
	}

	if cfg.ApiKey != nil {
		limiter, err := rate_limiter.NewAPILimiter(&rate_limiter.Definition{
			Name:           geolocationDbLimiterName,
			FillRate:       rate.Limit(cfg.RateLimit),
			BucketSize:     max(1, int(cfg.RateLimit)),
			MaxConcurrency: int64(cfg.MaxConcurrency),
		})
		if err != nil {
			return nil, err
		}
		client, err := NewGeolocationDbClient(cfg.ApiUrl, *cfg.ApiKey, limiter, httpClient)
		if err != nil {
			return nil, err
		}
		slog.Info("Using geolocation-db api", "url", cfg.ApiUrl, "limiter", limiter.String())
		chain = append(chain, client)
	}

	if len(chain) == 0 {
		return nil, errors.New("no geolocation lookup configured")
	}

	var lookup Lookup = chain
	if len(chain) == 1 {
		lookup = chain[0]
	}

	res := &Resolver{lookup: lookup}
	if cfg.CachePath != nil {
		store, err := OpenStore(ctx, *cfg.CachePath, lookup)
		if err != nil {
			return nil, err
		}
		slog.Info("Using geolocation cache", "path", typehelpers.SafeString(cfg.CachePath))
		res.lookup = store
		res.store = store
	}
	return res, nil
}
