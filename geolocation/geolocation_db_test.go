package geolocation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turbot/edgar-log-pipeline/rate_limiter"
	"github.com/turbot/edgar-log-pipeline/types"
)

func newGeolocationDbServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGeolocationDbClientLookup(t *testing.T) {
	srv := newGeolocationDbServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/test-key/9.9.9.9":
			_, _ = w.Write([]byte(`{"country_code":"US","country_name":"United States","city":"Berkeley","postal":"94709","latitude":37.8767,"longitude":-122.2676,"IPv4":"9.9.9.9","state":"California"}`))
		case "/test-key/1.2.3.0":
			_, _ = w.Write([]byte(`{"country_code":"DE","country_name":"Germany","city":"Not found","postal":"Not found","latitude":"Not found","longitude":"Not found","IPv4":"1.2.3.0","state":"Not found"}`))
		case "/test-key/10.0.0.0":
			_, _ = w.Write([]byte(`{"country_code":"Not found","country_name":"Not found","city":"Not found","postal":"Not found","latitude":"Not found","longitude":"Not found","IPv4":"10.0.0.0","state":"Not found"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	limiter, err := rate_limiter.NewAPILimiter(&rate_limiter.Definition{Name: "test", MaxConcurrency: 2})
	require.NoError(t, err)
	client, err := NewGeolocationDbClient(srv.URL, "test-key", limiter, srv.Client())
	require.NoError(t, err)

	tests := []struct {
		ip      string
		want    types.Location
		wantErr error
	}{
		{ip: "9.9.9.9", want: types.Location{CountryCode: "US", CountryName: "United States", RegionName: "California", CityName: "Berkeley"}},
		{ip: "1.2.3.0", want: types.Location{CountryCode: "DE", CountryName: "Germany"}},
		{ip: "10.0.0.0", wantErr: types.ErrLocationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			got, err := client.Lookup(context.Background(), tt.ip)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeolocationDbClientRetries(t *testing.T) {
	var calls atomic.Int32
	srv := newGeolocationDbServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"country_code":"US","country_name":"United States","city":"Berkeley","state":"California"}`))
	})

	client, err := NewGeolocationDbClient(srv.URL, "test-key", nil, srv.Client())
	require.NoError(t, err)
	client.SetRetryWaitTime(time.Millisecond)

	got, err := client.Lookup(context.Background(), "9.9.9.9")
	require.NoError(t, err)
	assert.Equal(t, "Berkeley", got.CityName)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeolocationDbClientGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := newGeolocationDbServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, err := NewGeolocationDbClient(srv.URL, "test-key", nil, srv.Client())
	require.NoError(t, err)
	client.SetRetryWaitTime(time.Millisecond)

	_, err = client.Lookup(context.Background(), "9.9.9.9")
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrLocationNotFound)
	assert.Equal(t, int32(5), calls.Load())
}

func TestNewGeolocationDbClientRequiresKey(t *testing.T) {
	_, err := NewGeolocationDbClient("https://geolocation-db.com/json", "", nil, nil)
	assert.Error(t, err)
}
