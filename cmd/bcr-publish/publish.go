package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/uhthomas/bazel-central-registry/internal/metrics"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/planner"
	"github.com/uhthomas/bazel-central-registry/publisher"
	"github.com/uhthomas/bazel-central-registry/storage"
	"github.com/uhthomas/bazel-central-registry/storage/memory"
	"github.com/uhthomas/bazel-central-registry/storage/minio"
	"github.com/uhthomas/bazel-central-registry/storage/s3"
)

const (
	backendS3     = "s3"
	backendMinio  = "minio"
	backendMemory = "memory"
)

type publishOptions struct {
	root        string
	bucket      string
	backend     string
	endpoint    string
	region      string
	pathStyle   bool
	dryRun      bool
	parallelism int
	compare     string
	exclude     []string
	metricsFile string
}

func defaultPublishOptions() *publishOptions {
	return &publishOptions{
		root:        ".",
		bucket:      publisher.DefaultBucket,
		backend:     backendS3,
		parallelism: 1,
		compare:     string(publisher.ComparisonChecksum),
	}
}

func (o *publishOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.root, "root", o.root, "Local registry root")
	fs.StringVar(&o.bucket, "bucket", o.bucket, "Destination bucket")
	fs.StringVar(&o.backend, "backend", o.backend, "Storage backend: s3, minio or memory")
	fs.StringVar(&o.endpoint, "endpoint", o.endpoint,
		"Storage endpoint URL (s3 default: "+s3.GCSEndpoint+" for "+publisher.DefaultBucket+", AWS otherwise)")
	fs.StringVar(&o.region, "region", o.region, "Bucket region")
	fs.BoolVar(&o.pathStyle, "path-style", o.pathStyle, "Use path-style bucket addressing")
	fs.BoolVar(&o.dryRun, "dry-run", o.dryRun, "Plan the publish without changing the bucket")
	fs.IntVar(&o.parallelism, "parallelism", o.parallelism, "Concurrent module uploads")
	fs.StringVar(&o.compare, "compare", o.compare, "Change detection: checksum, size or smart")
	fs.StringSliceVar(&o.exclude, "exclude", o.exclude, "Glob patterns under modules/ to leave untouched")
	fs.StringVar(&o.metricsFile, "metrics-file", o.metricsFile, "Write Prometheus metrics to this file after the run")
}

// runPublish publishes the tree and writes metrics, even when publishing fails.
func runPublish(ctx context.Context, out io.Writer, o *publishOptions, logger *slog.Logger) error {
	m := metrics.New()
	result, err := publish(ctx, out, o, logger)
	m.Observe(result, err, time.Now())

	if o.metricsFile != "" {
		if werr := m.WriteTextfile(o.metricsFile); werr != nil {
			err = errors.Join(err, werr)
		}
	}
	return err
}

func publish(ctx context.Context, out io.Writer, o *publishOptions, logger *slog.Logger) (*publisher.Result, error) {
	bucket, err := newBucket(ctx, o, logger)
	if err != nil {
		return nil, err
	}

	p, err := publisher.New(bucket,
		publisher.WithRoot(o.root),
		publisher.WithLogger(logger),
		publisher.WithDryRun(o.dryRun),
		publisher.WithParallelism(o.parallelism),
		publisher.WithComparison(publisher.Comparison(o.compare)),
		publisher.WithExclude(o.exclude...),
	)
	if err != nil {
		return nil, err
	}

	result, err := p.Publish(ctx)
	if err != nil {
		return result, err
	}

	if result.DryRun {
		printPlan(out, result)
	}
	logger.InfoContext(ctx, "publish finished",
		"bucket", result.Bucket,
		"dry_run", result.DryRun,
		"uploaded", result.FilesUploaded,
		"skipped", result.FilesSkipped,
		"deleted", result.FilesDeleted,
		"bytes", result.BytesUploaded,
		"duration", result.Duration,
	)
	return result, nil
}

func printPlan(out io.Writer, result *publisher.Result) {
	for _, sr := range result.Steps {
		if sr.Mirror == nil {
			if sr.Status == publisher.StatusPlanned {
				printf(out, "upload %s (%d bytes)\n", sr.Key, sr.Bytes)
			}
			continue
		}
		for _, op := range sr.Mirror.Operations {
			if op.Type == planner.OperationSkip {
				continue
			}
			printf(out, "%s %s (%s)\n", op.Type, op.RemoteKey, op.Reason)
		}
	}
}

func newBucket(ctx context.Context, o *publishOptions, logger *slog.Logger) (storage.Bucket, error) {
	switch o.backend {
	case backendS3:
		opts := []s3.Option{
			s3.WithLogger(logger),
			s3.WithForcePathStyle(o.pathStyle),
		}
		if o.region != "" {
			opts = append(opts, s3.WithRegion(o.region))
		}
		if endpoint := s3Endpoint(o); endpoint != "" {
			opts = append(opts, s3.WithEndpoint(endpoint))
		}
		b, err := s3.New(ctx, o.bucket, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil

	case backendMinio:
		if o.endpoint == "" {
			return nil, fmt.Errorf("--endpoint is required for the %s backend", backendMinio)
		}
		opts := []minio.Option{
			minio.WithLogger(logger),
			minio.WithPathStyle(o.pathStyle),
		}
		if o.region != "" {
			opts = append(opts, minio.WithRegion(o.region))
		}
		b, err := minio.New(o.endpoint, o.bucket, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil

	case backendMemory:
		return memory.New(o.bucket), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", o.backend)
	}
}

// s3Endpoint returns the endpoint for the s3 backend. The public registry
// bucket is hosted on Google Cloud Storage, so it is reached through the GCS
// XML interoperability endpoint unless --endpoint says otherwise.
func s3Endpoint(o *publishOptions) string {
	if o.endpoint == "" && o.bucket == publisher.DefaultBucket {
		return s3.GCSEndpoint
	}
	return o.endpoint
}
