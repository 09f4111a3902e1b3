package artifact_source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/turbot/edgar-log-pipeline/config"
	"github.com/turbot/edgar-log-pipeline/filepaths"
	"github.com/turbot/edgar-log-pipeline/helpers"
	"github.com/turbot/edgar-log-pipeline/types"
)

const (
	AwsS3BucketSourceIdentifier = "aws_s3_bucket"
	defaultBucketRegion         = "us-east-1"
)

// AwsS3BucketSource reads archives from a bucket mirroring the SEC files, under <prefix>/logYYYYMMDD.zip
type AwsS3BucketSource struct {
	bucket string
	prefix string
	client *s3.Client
}

func NewAwsS3BucketSource(ctx context.Context, c *config.SourceConfig, httpClient *http.Client) (*AwsS3BucketSource, error) {
	if c.Region == nil {
		slog.Info("No region set, using default", "region", defaultBucketRegion)
		c.Region = aws.String(defaultBucketRegion)
	}
	if httpClient == nil {
		httpClient = SharedHTTPClient()
	}

	cfg, err := awsClientConfiguration(ctx, c, httpClient)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(*cfg, func(o *s3.Options) {
		if c.EndpointUrl != nil {
			o.BaseEndpoint = c.EndpointUrl
			// S3-compatible stores generally do not support virtual-hosted buckets
			o.UsePathStyle = true
		}
	})

	slog.Info("Initialized AwsS3BucketSource", "bucket", c.Bucket, "prefix", c.Prefix, "region", *c.Region)
	return &AwsS3BucketSource{
		bucket: c.Bucket,
		prefix: c.Prefix,
		client: client,
	}, nil
}

func (s *AwsS3BucketSource) Identifier() string {
	return AwsS3BucketSourceIdentifier
}

func (s *AwsS3BucketSource) Fetch(ctx context.Context, date time.Time, destPath string) error {
	key := path.Join(s.prefix, ArchiveName(date))
	fetchErr := func(err error) error {
		return &types.FetchError{Date: helpers.FormatDate(date), Source: fmt.Sprintf("s3://%s/%s", s.bucket, key), Err: err}
	}

	getObjectOutput, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fetchErr(err)
	}
	defer getObjectOutput.Body.Close()

	err = filepaths.WriteAtomic(destPath, func(w io.Writer) error {
		_, err := io.Copy(w, getObjectOutput.Body)
		return err
	})
	if err != nil {
		return fetchErr(err)
	}
	return nil
}

func (s *AwsS3BucketSource) Close() error {
	return nil
}

func awsClientConfiguration(ctx context.Context, c *config.SourceConfig, httpClient *http.Client) (*aws.Config, error) {
	var configOptions []func(*awsconfig.LoadOptions) error

	// access keys
	if c.AccessKey != nil && c.SecretKey != nil {
		sessionToken := ""
		if c.SessionToken != nil {
			sessionToken = aws.ToString(c.SessionToken)
		}
		provider := credentials.NewStaticCredentialsProvider(aws.ToString(c.AccessKey), aws.ToString(c.SecretKey), sessionToken)
		configOptions = append(configOptions, awsconfig.WithCredentialsProvider(provider))
	}

	configOptions = append(configOptions,
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRegion(aws.ToString(c.Region)),
	)

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	maxRetries := readEnvVarToInt("AWS_MAX_ATTEMPTS", 9)
	retryer := retry.NewStandard(func(o *retry.StandardOptions) {
		o.MaxAttempts = maxRetries
		o.MaxBackoff = 5 * time.Minute
		o.RateLimiter = NoOpRateLimit{}
		o.Backoff = NewExponentialJitterBackoff(25*time.Millisecond, maxRetries)
	})
	cfg.Retryer = func() aws.Retryer {
		// UnknownError is the code returned for a 408 from the aws go sdk
		return retry.AddWithErrorCodes(retryer, "UnknownError")
	}

	return &cfg, nil
}

// NoOpRateLimit https://github.com/aws/aws-sdk-go-v2/issues/543
type NoOpRateLimit struct{}

func (NoOpRateLimit) AddTokens(uint) error { return nil }
func (NoOpRateLimit) GetToken(context.Context, uint) (func() error, error) {
	return noOpToken, nil
}
func noOpToken() error { return nil }

// ExponentialJitterBackoff provides backoff delays with jitter based on the number of attempts
type ExponentialJitterBackoff struct {
	minDelay           time.Duration
	maxBackoffAttempts int
}

func NewExponentialJitterBackoff(minDelay time.Duration, maxAttempts int) *ExponentialJitterBackoff {
	return &ExponentialJitterBackoff{minDelay, maxAttempts}
}

// BackoffDelay returns the duration to wait before the next attempt should be made
func (j *ExponentialJitterBackoff) BackoffDelay(attempt int, err error) (time.Duration, error) {
	// jitter is between [0.8, 1.2)
	jitter := float64(rand.Intn(120-80)+80) / 100

	retryTime := time.Duration(float64(j.minDelay.Nanoseconds()) * math.Pow(3, float64(attempt)) * jitter)
	if retryTime > 5*time.Minute {
		retryTime = 5 * time.Minute
	}

	slog.Info("BackoffDelay:", "attempt", attempt, "retry_time", retryTime.String(), "error", err)
	return retryTime, nil
}
