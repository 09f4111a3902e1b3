package config

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/turbot/pipe-fittings/utils"
)

const (
	DefaultSecEdgarBaseUrl        = "https://www.sec.gov/files"
	DefaultUserAgent              = "edgar-log-pipeline admin@example.com"
	DefaultGeolocationDbUrl       = "https://geolocation-db.com/json"
	DefaultMaxRequestsPerMinute   = 25
	DefaultMaxCiksPerMinute       = 3
	DefaultMaxRequestsPerDay      = 500
	DefaultGeolocationRateLimit   = 20
	DefaultEnrichmentConcurrency  = 8
	DefaultGeolocationRunCacheLen = 1 << 20
)

func defaultConfig() *Config {
	return &Config{
		BaseDir: ".",
		Source: &SourceConfig{
			Type:      SourceTypeSecEdgar,
			BaseUrl:   DefaultSecEdgarBaseUrl,
			UserAgent: DefaultUserAgent,
		},
		BotFilter: &BotFilterConfig{
			MaxRequestsPerMinute: DefaultMaxRequestsPerMinute,
			MaxCiksPerMinute:     DefaultMaxCiksPerMinute,
			MaxRequestsPerDay:    DefaultMaxRequestsPerDay,
		},
		Converter: &ConverterConfig{
			ExcludeIndexPages: utils.ToPointer(true),
			ExcludeCrawlers:   utils.ToPointer(true),
		},
		Geolocation: &GeolocationConfig{
			ApiUrl:         DefaultGeolocationDbUrl,
			RateLimit:      DefaultGeolocationRateLimit,
			MaxConcurrency: DefaultEnrichmentConcurrency,
			CacheSize:      DefaultGeolocationRunCacheLen,
		},
		Enrichment: &EnrichmentConfig{},
	}
}

// applyDefaults fills every unset value of c from the defaults, block by block
func (c *Config) applyDefaults() error {
	d := defaultConfig()

	if c.BaseDir == "" {
		c.BaseDir = d.BaseDir
	}
	if c.Source == nil {
		c.Source = &SourceConfig{}
	}
	if c.BotFilter == nil {
		c.BotFilter = &BotFilterConfig{}
	}
	if c.Converter == nil {
		c.Converter = &ConverterConfig{}
	}
	if c.Geolocation == nil {
		c.Geolocation = &GeolocationConfig{}
	}
	if c.Enrichment == nil {
		c.Enrichment = &EnrichmentConfig{}
	}

	merges := []struct {
		name     string
		dst, src any
	}{
		{"source", c.Source, d.Source},
		{"bot_filter", c.BotFilter, d.BotFilter},
		{"converter", c.Converter, d.Converter},
		{"geolocation", c.Geolocation, d.Geolocation},
	}
	for _, m := range merges {
		if err := mergo.Merge(m.dst, m.src); err != nil {
			return fmt.Errorf("failed to apply defaults to %s: %w", m.name, err)
		}
	}
	return nil
}
