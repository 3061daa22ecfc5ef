package s3

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Option configures a Bucket.
type Option func(*config)

type config struct {
	region             string
	endpoint           string
	forcePathStyle     bool
	accessKeyID        string
	secretAccessKey    string
	sessionToken       string
	timeout            time.Duration
	maxAttempts        int
	awsConfig          *aws.Config
	httpClient         *http.Client
	logger             *slog.Logger
	singleObjectDelete *bool
}

func defaultConfig() *config {
	return &config{
		maxAttempts: 1,
		logger:      slog.New(slog.DiscardHandler),
	}
}

// WithRegion sets the AWS region.
// If not specified, the region from the ambient configuration is used,
// falling back to us-east-1.
func WithRegion(region string) Option {
	return func(c *config) {
		c.region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// Use https://storage.googleapis.com for Google Cloud Storage XML
// interoperability or the LocalStack URL for local testing.
func WithEndpoint(endpoint string) Option {
	return func(c *config) {
		c.endpoint = endpoint
	}
}

// WithForcePathStyle forces path-style addressing instead of
// virtual-hosted-style URLs.
func WithForcePathStyle(forcePathStyle bool) Option {
	return func(c *config) {
		c.forcePathStyle = forcePathStyle
	}
}

// WithStaticCredentials uses fixed credentials instead of the default
// credential chain.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(c *config) {
		c.accessKeyID = accessKeyID
		c.secretAccessKey = secretAccessKey
		c.sessionToken = sessionToken
	}
}

// WithTimeout sets the HTTP client timeout for individual requests.
// Default is no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithMaxAttempts sets the total number of attempts per request, including
// the first. Default is 1, which disables SDK retries.
func WithMaxAttempts(attempts int) Option {
	return func(c *config) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithAWSConfig provides a preloaded AWS configuration, skipping the
// default configuration loading.
func WithAWSConfig(cfg *aws.Config) Option {
	return func(c *config) {
		c.awsConfig = cfg
	}
}

// WithHTTPClient sets a custom HTTP client. It takes precedence over
// WithTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithLogger sets the logger used for request-level debug logging.
// A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		c.logger = logger
	}
}

// WithSingleObjectDelete issues one DeleteObject request per key instead of
// a DeleteObjects batch. It is enabled automatically for the Google Cloud
// Storage endpoint, which does not implement multi-object delete.
func WithSingleObjectDelete(enabled bool) Option {
	return func(c *config) {
		c.singleObjectDelete = &enabled
	}
}
