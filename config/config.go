package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/turbot/go-kit/types"
)

const (
	SourceTypeSecEdgar   = "sec_edgar"
	SourceTypeAwsS3      = "aws_s3_bucket"
	SourceTypeGcpStorage = "gcp_storage_bucket"
	SourceTypeFileSystem = "file_system"
)

// Config is the run configuration, decoded from an HCL file and completed with defaults
type Config struct {
	BaseDir     string             `hcl:"base_dir,optional"`
	Source      *SourceConfig      `hcl:"source,block"`
	BotFilter   *BotFilterConfig   `hcl:"bot_filter,block"`
	Converter   *ConverterConfig   `hcl:"converter,block"`
	Geolocation *GeolocationConfig `hcl:"geolocation,block"`
	Enrichment  *EnrichmentConfig  `hcl:"enrichment,block"`
}

// SourceConfig selects where daily archives are fetched from
type SourceConfig struct {
	Type string `hcl:"type,optional"`

	// sec_edgar
	BaseUrl   string `hcl:"base_url,optional"`
	UserAgent string `hcl:"user_agent,optional"`

	// aws_s3_bucket and gcp_storage_bucket
	Bucket string `hcl:"bucket,optional"`
	Prefix string `hcl:"prefix,optional"`

	// aws_s3_bucket
	Region       *string `hcl:"region"`
	EndpointUrl  *string `hcl:"endpoint_url"`
	AccessKey    *string `hcl:"access_key"`
	SecretKey    *string `hcl:"secret_key"`
	SessionToken *string `hcl:"session_token"`

	// gcp_storage_bucket
	Credentials  *string `hcl:"credentials"`
	QuotaProject *string `hcl:"quota_project"`

	// file_system
	Path string `hcl:"path,optional"`
}

func (c *SourceConfig) Validate() error {
	switch c.Type {
	case SourceTypeSecEdgar:
		return nil
	case SourceTypeAwsS3:
		if c.Bucket == "" {
			return errors.New("bucket is required for source type aws_s3_bucket")
		}
		if c.AccessKey != nil && c.SecretKey == nil {
			return fmt.Errorf("access_key set without secret_key")
		}
		if c.AccessKey == nil && c.SecretKey != nil {
			return fmt.Errorf("secret_key set without access_key")
		}
		return nil
	case SourceTypeGcpStorage:
		if c.Bucket == "" {
			return errors.New("bucket is required for source type gcp_storage_bucket")
		}
		return nil
	case SourceTypeFileSystem:
		if c.Path == "" {
			return errors.New("path is required for source type file_system")
		}
		return nil
	default:
		return fmt.Errorf("unsupported source type %q, must be one of: %s", c.Type,
			strings.Join([]string{SourceTypeSecEdgar, SourceTypeAwsS3, SourceTypeGcpStorage, SourceTypeFileSystem}, ", "))
	}
}

// String returns a description of the source which is safe to log
func (c *SourceConfig) String() string {
	switch c.Type {
	case SourceTypeAwsS3:
		return fmt.Sprintf("%s(bucket=%s, prefix=%s, region=%s)", c.Type, c.Bucket, c.Prefix, types.SafeString(c.Region))
	case SourceTypeGcpStorage:
		return fmt.Sprintf("%s(bucket=%s, prefix=%s)", c.Type, c.Bucket, c.Prefix)
	case SourceTypeFileSystem:
		return fmt.Sprintf("%s(path=%s)", c.Type, c.Path)
	default:
		return fmt.Sprintf("%s(base_url=%s)", c.Type, c.BaseUrl)
	}
}

// BotFilterConfig holds the RPV thresholds. A value is exceeded when strictly greater.
type BotFilterConfig struct {
	MaxRequestsPerMinute int `hcl:"max_requests_per_minute,optional"`
	MaxCiksPerMinute     int `hcl:"max_ciks_per_minute,optional"`
	MaxRequestsPerDay    int `hcl:"max_requests_per_day,optional"`
}

func (c *BotFilterConfig) Validate() error {
	var errs []error
	if c.MaxRequestsPerMinute <= 0 {
		errs = append(errs, errors.New("max_requests_per_minute must be greater than 0"))
	}
	if c.MaxCiksPerMinute <= 0 {
		errs = append(errs, errors.New("max_ciks_per_minute must be greater than 0"))
	}
	if c.MaxRequestsPerDay <= 0 {
		errs = append(errs, errors.New("max_requests_per_day must be greater than 0"))
	}
	return errors.Join(errs...)
}

type ConverterConfig struct {
	ExcludeIndexPages *bool `hcl:"exclude_index_pages"`
	ExcludeCrawlers   *bool `hcl:"exclude_crawlers"`
}

// GeolocationConfig configures how addresses are resolved.
// A local database is consulted before the API; the persistent cache sits in front of both.
type GeolocationConfig struct {
	DatabasePath   *string `hcl:"database_path"`
	ApiKey         *string `hcl:"api_key"`
	ApiUrl         string  `hcl:"api_url,optional"`
	CachePath      *string `hcl:"cache_path"`
	RateLimit      float64 `hcl:"rate_limit,optional"`
	MaxConcurrency int     `hcl:"max_concurrency,optional"`
	CacheSize      int     `hcl:"cache_size,optional"`
}

func (c *GeolocationConfig) Validate() error {
	if c.DatabasePath == nil && c.ApiKey == nil {
		return fmt.Errorf("geolocation requires database_path or api_key (or the EDGAR_GEOLOCATION_DB_API_KEY environment variable)")
	}
	if c.MaxConcurrency <= 0 {
		return errors.New("max_concurrency must be greater than 0")
	}
	if c.CacheSize <= 0 {
		return errors.New("cache_size must be greater than 0")
	}
	if c.RateLimit < 0 {
		return errors.New("rate_limit must not be negative")
	}
	return nil
}

type EnrichmentConfig struct {
	CountryMappingFile *string `hcl:"country_mapping_file"`
}

func (c *Config) Validate() error {
	var errs []error
	if err := c.Source.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	if err := c.BotFilter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot_filter: %w", err))
	}
	if err := c.Geolocation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("geolocation: %w", err))
	}
	return errors.Join(errs...)
}
