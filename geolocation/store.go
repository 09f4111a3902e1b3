package geolocation

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/turbot/edgar-log-pipeline/types"
	_ "modernc.org/sqlite"
)

//go:embed store_schema.sql
var storeSchema string

const storeTable = "ip_locations"

// Store is a persistent cache in front of another lookup. It remembers both locations
// and definite misses, so an address is only ever sent to the next lookup once.
// Lookup failures are not remembered.
type Store struct {
	db   *sql.DB
	next Lookup
	now  func() time.Time
}

// OpenStore opens (creating if needed) the sqlite cache at path
func OpenStore(ctx context.Context, path string, next Lookup) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("could not create directory for geolocation cache: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geolocation cache %s: %w", path, err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise geolocation cache %s: %w", path, err)
	}
	return &Store{db: db, next: next, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Lookup(ctx context.Context, ip string) (types.Location, error) {
	loc, cached, err := s.get(ctx, ip)
	if err != nil {
		return types.Location{}, err
	}
	if cached {
		if loc.IsEmpty() {
			return types.Location{}, types.ErrLocationNotFound
		}
		return loc, nil
	}

	loc, err = s.next.Lookup(ctx, ip)
	switch {
	case err == nil:
		if putErr := s.put(ctx, ip, loc, true); putErr != nil {
			slog.Warn("Failed to cache location", "ip", ip, "error", putErr)
		}
		return loc, nil
	case errors.Is(err, types.ErrLocationNotFound):
		if putErr := s.put(ctx, ip, types.Location{}, false); putErr != nil {
			slog.Warn("Failed to cache location miss", "ip", ip, "error", putErr)
		}
		return types.Location{}, err
	default:
		return types.Location{}, err
	}
}

// get returns the cached location of ip, and whether there was a cache entry
func (s *Store) get(ctx context.Context, ip string) (types.Location, bool, error) {
	query, args, err := sq.Select("found", "country_code", "country_name", "region_name", "city_name").
		From(storeTable).
		Where(sq.Eq{"ip": ip}).
		ToSql()
	if err != nil {
		return types.Location{}, false, err
	}

	var found bool
	var loc types.Location
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&found, &loc.CountryCode, &loc.CountryName, &loc.RegionName, &loc.CityName)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Location{}, false, nil
	}
	if err != nil {
		return types.Location{}, false, fmt.Errorf("failed to read geolocation cache: %w", err)
	}
	if !found {
		return types.Location{}, true, nil
	}
	return loc, true, nil
}

func (s *Store) put(ctx context.Context, ip string, loc types.Location, found bool) error {
	query, args, err := sq.Replace(storeTable).
		Columns("ip", "found", "country_code", "country_name", "region_name", "city_name", "looked_up_at").
		Values(ip, found, loc.CountryCode, loc.CountryName, loc.RegionName, loc.CityName, s.now().Unix()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// Len returns the number of cached addresses
func (s *Store) Len(ctx context.Context) (int, error) {
	query, args, err := sq.Select("count(*)").From(storeTable).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
