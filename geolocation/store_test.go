package geolocation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turbot/edgar-log-pipeline/types"
)

func TestStoreRemembersHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "geolocation.db")
	germany := types.Location{CountryCode: "DE", CountryName: "Germany", RegionName: "Hessen", CityName: "Frankfurt am Main"}

	hit := &stubLookup{loc: germany}
	store, err := OpenStore(ctx, path, hit)
	require.NoError(t, err)

	got, err := store.Lookup(ctx, "1.2.3.0")
	require.NoError(t, err)
	assert.Equal(t, germany, got)
	got, err = store.Lookup(ctx, "1.2.3.0")
	require.NoError(t, err)
	assert.Equal(t, germany, got)
	assert.Equal(t, 1, hit.calls)
	require.NoError(t, store.Close())

	// reopen with a lookup that finds nothing: the cached hit survives, misses are remembered
	miss := &stubLookup{err: types.ErrLocationNotFound}
	store, err = OpenStore(ctx, path, miss)
	require.NoError(t, err)
	defer store.Close()

	got, err = store.Lookup(ctx, "1.2.3.0")
	require.NoError(t, err)
	assert.Equal(t, germany, got)
	assert.Equal(t, 0, miss.calls)

	_, err = store.Lookup(ctx, "10.0.0.0")
	assert.ErrorIs(t, err, types.ErrLocationNotFound)
	_, err = store.Lookup(ctx, "10.0.0.0")
	assert.ErrorIs(t, err, types.ErrLocationNotFound)
	assert.Equal(t, 1, miss.calls)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreDoesNotRememberFailures(t *testing.T) {
	ctx := context.Background()
	failing := &stubLookup{err: errors.New("503 service unavailable")}
	store, err := OpenStore(ctx, filepath.Join(t.TempDir(), "geolocation.db"), failing)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 2; i++ {
		_, err = store.Lookup(ctx, "1.2.3.0")
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrLocationNotFound)
	}
	assert.Equal(t, 2, failing.calls)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
