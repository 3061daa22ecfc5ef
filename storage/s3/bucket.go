// Package s3 implements storage.Bucket on top of the AWS SDK for Go v2.
//
// The same client serves Amazon S3, Google Cloud Storage through its XML
// interoperability endpoint, and S3-compatible services such as LocalStack.
// Requests are attempted once by default; the publisher does not retry.
package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/multierr"

	"github.com/uhthomas/bazel-central-registry/internal/s3api"
	"github.com/uhthomas/bazel-central-registry/storage"
)

const (
	defaultRegion = "us-east-1"

	// GCSEndpoint is the Google Cloud Storage XML interoperability endpoint.
	GCSEndpoint = "https://storage.googleapis.com"
)

// Bucket is a storage.Bucket backed by an S3 API client.
type Bucket struct {
	api          s3api.S3API
	name         string
	logger       *slog.Logger
	singleDelete bool
}

// New creates a Bucket bound to name. Credentials and region are resolved
// through the default AWS configuration chain unless overridden by options.
//
// Example:
//
//	bucket, err := s3.New(ctx, "bcr.bazel.build",
//	    s3.WithEndpoint(s3.GCSEndpoint),
//	)
func New(ctx context.Context, name string, opts ...Option) (*Bucket, error) {
	if name == "" {
		return nil, storage.NewError("new", storage.KindInvalidInput, fmt.Errorf("bucket name is required"))
	}

	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	var cfg aws.Config
	if c.awsConfig != nil {
		cfg = *c.awsConfig
	} else {
		var err error
		cfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, storage.NewError("new", storage.KindTransport, fmt.Errorf("loading AWS config: %w", err)).
				WithBucket(name)
		}
	}

	if c.region != "" {
		cfg.Region = c.region
	} else if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	if c.accessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(c.accessKeyID, c.secretAccessKey, c.sessionToken),
		)
	}

	cfg.RetryMaxAttempts = c.maxAttempts

	httpClient := c.httpClient
	if httpClient == nil && c.timeout > 0 {
		httpClient = &http.Client{Timeout: c.timeout}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = c.forcePathStyle
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
		if httpClient != nil {
			o.HTTPClient = httpClient
		}
		// Checksum headers are only sent when an operation requires them,
		// which keeps non-AWS endpoints working.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	singleDelete := isGCSEndpoint(c.endpoint)
	if c.singleObjectDelete != nil {
		singleDelete = *c.singleObjectDelete
	}

	return &Bucket{
		api:          client,
		name:         name,
		logger:       c.logger,
		singleDelete: singleDelete,
	}, nil
}

// NewWithClient creates a Bucket around an existing S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(api s3api.S3API, name string, opts ...Option) *Bucket {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	singleDelete := false
	if c.singleObjectDelete != nil {
		singleDelete = *c.singleObjectDelete
	}
	return &Bucket{
		api:          api,
		name:         name,
		logger:       c.logger,
		singleDelete: singleDelete,
	}
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Put uploads body to key, replacing any existing object.
func (b *Bucket) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	b.logger.DebugContext(ctx, "put object", "bucket", b.name, "key", key, "size", size)
	if _, err := b.api.PutObject(ctx, input); err != nil {
		return wrapError("put", b.name, key, err)
	}
	return nil
}

// List returns every object under prefix, following continuation tokens.
func (b *Bucket) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []storage.Object
	paginator := s3.NewListObjectsV2Paginator(b.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapError("list", b.name, prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, convertObject(obj))
		}
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

	if b.singleDelete {
		return b.deleteEach(ctx, keys)
	}

	identifiers := make([]types.ObjectIdentifier, len(keys))
	for i, key := range keys {
		identifiers[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}

	b.logger.DebugContext(ctx, "delete objects", "bucket", b.name, "count", len(keys))
	out, err := b.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.name),
		Delete: &types.Delete{
			Objects: identifiers,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return wrapError("delete", b.name, "", err)
	}

	var (
		combined error
		kind     storage.Kind
	)
	for _, e := range out.Errors {
		code := aws.ToString(e.Code)
		if code == codeNoSuchKey {
			continue
		}
		combined = multierr.Append(combined,
			fmt.Errorf("%s: %s: %s", aws.ToString(e.Key), code, aws.ToString(e.Message)))
		if kind == "" || kind == storage.KindTransport {
			kind = deleteErrorKind(code)
		}
	}
	if combined != nil {
		return storage.NewError("delete", kind, combined).WithBucket(b.name)
	}
	return nil
}

func (b *Bucket) deleteEach(ctx context.Context, keys []string) error {
	for _, key := range keys {
		b.logger.DebugContext(ctx, "delete object", "bucket", b.name, "key", key)
		_, err := b.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.name),
			Key:    aws.String(key),
		})
		if err != nil {
			if classify(err) == storage.KindNotFound && !isNoSuchBucket(err) {
				continue
			}
			return wrapError("delete", b.name, key, err)
		}
	}
	return nil
}

func convertObject(obj types.Object) storage.Object {
	o := storage.Object{
		Key:  aws.ToString(obj.Key),
		Size: aws.ToInt64(obj.Size),
		ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
	}
	if obj.LastModified != nil {
		o.LastModified = *obj.LastModified
	}
	return o
}

func isGCSEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return u.Hostname() == "storage.googleapis.com"
}

var _ storage.Bucket = (*Bucket)(nil)
