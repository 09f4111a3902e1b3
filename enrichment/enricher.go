package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/turbot/edgar-log-pipeline/logging"
	"github.com/turbot/edgar-log-pipeline/schema"
	"github.com/turbot/edgar-log-pipeline/types"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxConcurrency = 8
	// DefaultCacheSize comfortably exceeds the number of distinct addresses in a day of EDGAR logs
	DefaultCacheSize = 1 << 20
)

// Lookup resolves the location of an address.
// A lookup with no result returns types.ErrLocationNotFound.
type Lookup interface {
	Lookup(ctx context.Context, ip string) (types.Location, error)
}

type EnricherOption func(*Enricher)

func WithMaxConcurrency(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

func WithCacheSize(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// EnrichStats describes the outcome of enriching one table
type EnrichStats struct {
	Rows        int
	DistinctIps int
	CacheHits   int
	Lookups     int
	Misses      int
}

func (s *EnrichStats) Counts() map[string]int {
	return map[string]int{
		"rows":         s.Rows,
		"distinct_ips": s.DistinctIps,
		"cache_hits":   s.CacheHits,
		"lookups":      s.Lookups,
		"misses":       s.Misses,
	}
}

// Enricher joins each record with the location of its address.
// Locations are cached for the lifetime of the Enricher, so one Enricher per run
// performs at most one lookup per distinct address.
type Enricher struct {
	lookup         Lookup
	cache          *lru.Cache[string, types.Location]
	maxConcurrency int
	cacheSize      int
}

func NewEnricher(lookup Lookup, opts ...EnricherOption) (*Enricher, error) {
	e := &Enricher{
		lookup:         lookup,
		maxConcurrency: DefaultMaxConcurrency,
		cacheSize:      DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	cache, err := lru.New[string, types.Location](e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create location cache: %w", err)
	}
	e.cache = cache
	return e, nil
}

// Enrich returns records joined with their locations, in input order.
// Failed or empty lookups produce the unknown location; only cancellation returns an error.
func (e *Enricher) Enrich(ctx context.Context, records []types.LogRecord) ([]types.EnrichedRecord, *EnrichStats, error) {
	stats := &EnrichStats{Rows: len(records)}

	// collect distinct lookup keys, in first-seen order
	cleaned := make([]string, len(records))
	resolved := make(map[string]types.Location)
	var pending []string
	seen := make(map[string]struct{})
	for i, r := range records {
		key := CleanIp(r.Ip)
		cleaned[i] = key
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if loc, ok := e.cache.Get(key); ok {
			resolved[key] = loc
			stats.CacheHits++
			continue
		}
		pending = append(pending, key)
	}
	stats.DistinctIps = len(seen)
	stats.Lookups = len(pending)

	locations, misses, err := e.resolve(ctx, pending)
	if err != nil {
		return nil, stats, err
	}
	stats.Misses = misses
	for i, key := range pending {
		resolved[key] = locations[i]
		e.cache.Add(key, locations[i])
	}

	res := make([]types.EnrichedRecord, len(records))
	for i, r := range records {
		res[i] = types.NewEnrichedRecord(r, cleaned[i], resolved[cleaned[i]])
	}
	return res, stats, nil
}

// resolve looks up every key with bounded concurrency. Results are positional.
func (e *Enricher) resolve(ctx context.Context, keys []string) ([]types.Location, int, error) {
	locations := make([]types.Location, len(keys))
	var misses atomic.Int64

	logger := logging.FromContext(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			loc, err := e.lookup.Lookup(gctx, key)
			if err == nil && loc.IsEmpty() {
				err = types.ErrLocationNotFound
			}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				misses.Add(1)
				miss := &types.LookupMiss{Ip: key, Err: err}
				if errors.Is(err, types.ErrLocationNotFound) {
					logger.Debug("No location found", "ip", key)
				} else {
					logger.Warn("Location lookup failed", "ip", key, "error", miss)
				}
				locations[i] = types.UnknownLocation()
				return nil
			}
			locations[i] = loc.WithUnknownDefaults()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return locations, int(misses.Load()), nil
}

// EnrichFile reads a bot-filtered table, enriches it and writes the result to outPath
func (e *Enricher) EnrichFile(ctx context.Context, inPath, outPath string) (*EnrichStats, error) {
	records, err := schema.ReadParquet[types.LogRecord](inPath)
	if err != nil {
		return nil, err
	}

	enriched, stats, err := e.Enrich(ctx, records)
	if err != nil {
		return stats, err
	}
	if err := schema.WriteParquet(outPath, enriched); err != nil {
		return stats, err
	}

	logging.FromContext(ctx).Info("Enriched table", "input", inPath, "rows", stats.Rows, "distinct_ips", stats.DistinctIps,
		"cache_hits", stats.CacheHits, "lookups", stats.Lookups, "misses", stats.Misses)
	return stats, nil
}
