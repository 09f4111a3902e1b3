package artifact_source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/turbot/edgar-log-pipeline/config"
)

// NewFetcher creates the Fetcher for the configured source type
func NewFetcher(ctx context.Context, c *config.SourceConfig, httpClient *http.Client) (Fetcher, error) {
	if c == nil {
		return nil, fmt.Errorf("no source configured")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source config: %w", err)
	}

	switch c.Type {
	case config.SourceTypeSecEdgar:
		s, err := NewSecEdgarSource(c.BaseUrl, c.UserAgent, httpClient)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SourceTypeAwsS3:
		s, err := NewAwsS3BucketSource(ctx, c, httpClient)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SourceTypeGcpStorage:
		s, err := NewGcpStorageBucketSource(ctx, c)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SourceTypeFileSystem:
		s, err := NewFileSystemSource(c.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported source type %q", c.Type)
	}
}
