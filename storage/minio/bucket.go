// Package minio implements storage.Bucket with the minio-go client.
//
// It targets MinIO and other S3-compatible services. Credentials come from
// the AWS_* or MINIO_* environment variables unless static credentials are
// supplied.
package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/multierr"

	"github.com/uhthomas/bazel-central-registry/storage"
)

const defaultRegion = "us-east-1"

// api is the subset of *minio.Client used by Bucket.
type api interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan minio.ObjectInfo,
		opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

var _ api = (*minio.Client)(nil)

// Option configures a Bucket.
type Option func(*config)

type config struct {
	region          string
	pathStyle       bool
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
	transport       http.RoundTripper
	logger          *slog.Logger
}

// WithRegion sets the bucket region. Default is us-east-1, which also skips
// the bucket location lookup.
func WithRegion(region string) Option {
	return func(c *config) {
		c.region = region
	}
}

// WithPathStyle forces path-style bucket addressing.
func WithPathStyle(enabled bool) Option {
	return func(c *config) {
		c.pathStyle = enabled
	}
}

// WithStaticCredentials uses fixed signature v4 credentials.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(c *config) {
		c.accessKeyID = accessKeyID
		c.secretAccessKey = secretAccessKey
		c.sessionToken = sessionToken
	}
}

// WithTransport sets the HTTP transport used by the client.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *config) {
		c.transport = rt
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		c.logger = logger
	}
}

// Bucket is a storage.Bucket backed by minio-go.
type Bucket struct {
	client api
	name   string
	logger *slog.Logger
}

// New creates a Bucket for name at endpoint. The endpoint may be a bare
// host[:port], which implies TLS, or a URL whose scheme selects TLS.
func New(endpoint, name string, opts ...Option) (*Bucket, error) {
	if name == "" {
		return nil, storage.NewError("new", storage.KindInvalidInput, fmt.Errorf("bucket name is required"))
	}

	c := &config{
		region: defaultRegion,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	host, secure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, storage.NewError("new", storage.KindInvalidInput, err).WithBucket(name)
	}

	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
	})
	if c.accessKeyID != "" {
		creds = credentials.NewStaticV4(c.accessKeyID, c.secretAccessKey, c.sessionToken)
	}

	lookup := minio.BucketLookupAuto
	if c.pathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(host, &minio.Options{
		Creds:        creds,
		Secure:       secure,
		Region:       c.region,
		BucketLookup: lookup,
		Transport:    c.transport,
		MaxRetries:   1,
	})
	if err != nil {
		return nil, storage.NewError("new", storage.KindInvalidInput, err).WithBucket(name)
	}

	return &Bucket{client: client, name: name, logger: c.logger}, nil
}

func newWithClient(client api, name string) *Bucket {
	return &Bucket{client: client, name: name, logger: slog.New(slog.DiscardHandler)}
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Put uploads body to key, replacing any existing object.
func (b *Bucket) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	b.logger.DebugContext(ctx, "put object", "bucket", b.name, "key", key, "size", size)
	_, err := b.client.PutObject(ctx, b.name, key, body, size, minio.PutObjectOptions{
		ContentType:    contentType,
		SendContentMd5: true,
	})
	if err != nil {
		return wrapError("put", b.name, key, err)
	}
	return nil
}

// List returns every object under prefix.
func (b *Bucket) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []storage.Object
	for info := range b.client.ListObjects(ctx, b.name, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, wrapError("list", b.name, prefix, info.Err)
		}
		objects = append(objects, storage.Object{
			Key:          info.Key,
			Size:         info.Size,
			ETag:         strings.Trim(info.ETag, `"`),
			LastModified: info.LastModified,
		})
	}

	b.logger.DebugContext(ctx, "listed objects", "bucket", b.name, "prefix", prefix, "count", len(objects))
	return objects, nil
}

// Delete removes keys from the bucket. Keys that do not exist are ignored.
func (b *Bucket) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if len(keys) > storage.MaxDeleteBatch {
		return storage.NewError("delete", storage.KindInvalidInput,
			fmt.Errorf("%d keys exceeds batch limit of %d", len(keys), storage.MaxDeleteBatch)).
			WithBucket(b.name)
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	b.logger.DebugContext(ctx, "delete objects", "bucket", b.name, "count", len(keys))

	var (
		combined error
		kind     storage.Kind
	)
	for rerr := range b.client.RemoveObjects(ctx, b.name, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err == nil || minio.ToErrorResponse(rerr.Err).Code == codeNoSuchKey {
			continue
		}
		combined = multierr.Append(combined, fmt.Errorf("%s: %w", rerr.ObjectName, rerr.Err))
		if k := classify(rerr.Err); kind == "" || kind == storage.KindTransport {
			kind = k
		}
	}
	if combined != nil {
		return storage.NewError("delete", kind, combined).WithBucket(b.name)
	}
	return nil
}

// parseEndpoint splits an endpoint into the host form minio.New expects and
// whether TLS should be used.
func parseEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parsing endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

var _ storage.Bucket = (*Bucket)(nil)
