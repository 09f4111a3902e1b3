package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/turbot/edgar-log-pipeline/rate_limiter"
	"github.com/turbot/edgar-log-pipeline/types"
)

const (
	geolocationDbAttempts  = 5
	geolocationDbRetryWait = time.Second
	geolocationDbTimeout   = 30 * time.Second
	// geolocation-db reports absent fields with this value
	geolocationDbNotFound = "Not found"
)

type geolocationDbResponse struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	City        string `json:"city"`
	State       string `json:"state"`
	IPv4        string `json:"IPv4"`
}

// GeolocationDbClient resolves addresses with the geolocation-db.com JSON API
type GeolocationDbClient struct {
	client  *resty.Client
	apiKey  string
	limiter *rate_limiter.APILimiter
}

// NewGeolocationDbClient creates a client for the API at baseUrl. Transport errors, 429 and
// 5xx responses are retried. A nil limiter means requests are not limited.
func NewGeolocationDbClient(baseUrl, apiKey string, limiter *rate_limiter.APILimiter, httpClient *http.Client) (*GeolocationDbClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("geolocation-db api key is required")
	}
	// resty sets the timeout on the client it is given, so use a copy
	hc := &http.Client{}
	if httpClient != nil {
		*hc = *httpClient
	}
	client := resty.NewWithClient(hc).
		SetBaseURL(strings.TrimSuffix(baseUrl, "/")).
		SetTimeout(geolocationDbTimeout).
		SetRetryCount(geolocationDbAttempts - 1).
		SetRetryWaitTime(geolocationDbRetryWait).
		SetRetryMaxWaitTime(geolocationDbRetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &GeolocationDbClient{
		client:  client,
		apiKey:  apiKey,
		limiter: limiter,
	}, nil
}

// SetRetryWaitTime overrides the wait between attempts
func (c *GeolocationDbClient) SetRetryWaitTime(d time.Duration) {
	c.client.SetRetryWaitTime(d).SetRetryMaxWaitTime(d)
}

func (c *GeolocationDbClient) Lookup(ctx context.Context, ip string) (types.Location, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return types.Location{}, err
		}
		defer c.limiter.Release()
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"key": c.apiKey, "ip": ip}).
		Get("/{key}/{ip}")
	if err != nil {
		return types.Location{}, fmt.Errorf("geolocation-db request failed: %w", err)
	}
	if res.IsError() {
		return types.Location{}, fmt.Errorf("geolocation-db returned %s", res.Status())
	}

	var body geolocationDbResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return types.Location{}, fmt.Errorf("invalid geolocation-db response: %w", err)
	}

	loc := types.Location{
		CountryCode: found(body.CountryCode),
		CountryName: found(body.CountryName),
		RegionName:  found(body.State),
		CityName:    found(body.City),
	}
	if loc.IsEmpty() {
		return types.Location{}, types.ErrLocationNotFound
	}
	return loc, nil
}

func found(s string) string {
	s = strings.TrimSpace(s)
	if s == geolocationDbNotFound {
		return ""
	}
	return s
}
