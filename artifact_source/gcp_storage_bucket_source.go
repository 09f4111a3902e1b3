package artifact_source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/mitchellh/go-homedir"
	"github.com/turbot/edgar-log-pipeline/config"
	"github.com/turbot/edgar-log-pipeline/filepaths"
	"github.com/turbot/edgar-log-pipeline/helpers"
	"github.com/turbot/edgar-log-pipeline/types"
	"google.golang.org/api/option"
)

const GcpStorageBucketSourceIdentifier = "gcp_storage_bucket"

// GcpStorageBucketSource reads archives from a GCS bucket laid out as <prefix>/logYYYYMMDD.zip
type GcpStorageBucketSource struct {
	bucket string
	prefix string
	client *storage.Client
}

func NewGcpStorageBucketSource(ctx context.Context, c *config.SourceConfig) (*GcpStorageBucketSource, error) {
	opts, err := gcpClientOptions(c)
	if err != nil {
		return nil, fmt.Errorf("failed setting GCP Storage client config: %w", err)
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Storage client: %w", err)
	}

	slog.Info("Initialized GcpStorageBucketSource", "bucket", c.Bucket, "prefix", c.Prefix)
	return &GcpStorageBucketSource{
		bucket: c.Bucket,
		prefix: c.Prefix,
		client: client,
	}, nil
}

func (s *GcpStorageBucketSource) Identifier() string {
	return GcpStorageBucketSourceIdentifier
}

func (s *GcpStorageBucketSource) Fetch(ctx context.Context, date time.Time, destPath string) error {
	name := path.Join(s.prefix, ArchiveName(date))
	fetchErr := func(err error) error {
		return &types.FetchError{Date: helpers.FormatDate(date), Source: fmt.Sprintf("gs://%s/%s", s.bucket, name), Err: err}
	}

	reader, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return fetchErr(fmt.Errorf("failed to get object reader: %w", err))
	}
	defer reader.Close()

	err = filepaths.WriteAtomic(destPath, func(w io.Writer) error {
		_, err := io.Copy(w, reader)
		return err
	})
	if err != nil {
		return fetchErr(err)
	}
	return nil
}

func (s *GcpStorageBucketSource) Close() error {
	return s.client.Close()
}

func gcpClientOptions(c *config.SourceConfig) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	if c.Credentials != nil {
		credentials, err := pathOrContents(*c.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON([]byte(credentials)))
	}

	quotaProject := os.Getenv("GOOGLE_CLOUD_QUOTA_PROJECT")
	if c.QuotaProject != nil {
		quotaProject = *c.QuotaProject
	}
	if quotaProject != "" {
		opts = append(opts, option.WithQuotaProject(quotaProject))
	}

	return opts, nil
}

// pathOrContents returns the contents of the file at in, if it names one, otherwise in itself
func pathOrContents(in string) (string, error) {
	if len(in) == 0 {
		return "", nil
	}

	filePath, err := homedir.Expand(in)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(filePath); err == nil {
		contents, err := os.ReadFile(filePath)
		if err != nil {
			return "", err
		}
		return string(contents), nil
	}

	if len(filePath) > 1 && (filePath[0] == '/' || filePath[0] == '\\') {
		return "", fmt.Errorf("%s: no such file or dir", filePath)
	}

	return in, nil
}
