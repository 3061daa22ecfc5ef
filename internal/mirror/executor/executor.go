// Package executor performs planned mirror operations against a bucket.
//
// Uploads run first, bounded by the configured parallelism, followed by
// deletes in batches of at most storage.MaxDeleteBatch keys. The first
// failure stops all further work and is returned.
package executor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/planner"
	"github.com/uhthomas/bazel-central-registry/storage"
)

// DefaultParallelism is the number of concurrent uploads when none is set.
const DefaultParallelism = 1

// Executor runs upload and delete operations.
type Executor struct {
	bucket      storage.Bucket
	fs          fsys.Filesystem
	parallelism int
	logger      *slog.Logger
}

// New creates an executor. A parallelism below one selects
// DefaultParallelism; a nil logger disables logging.
func New(bucket storage.Bucket, fs fsys.Filesystem, parallelism int, logger *slog.Logger) *Executor {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		bucket:      bucket,
		fs:          fs,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Result contains the outcome of executed operations.
type Result struct {
	filesUploaded int64
	bytesUploaded int64
	filesDeleted  int64

	// Duration is how long execution took.
	Duration time.Duration
}

// FilesUploaded returns the number of files uploaded.
func (r *Result) FilesUploaded() int {
	return int(atomic.LoadInt64(&r.filesUploaded))
}

// BytesUploaded returns the number of bytes uploaded.
func (r *Result) BytesUploaded() int64 {
	return atomic.LoadInt64(&r.bytesUploaded)
}

// FilesDeleted returns the number of objects deleted.
func (r *Result) FilesDeleted() int {
	return int(atomic.LoadInt64(&r.filesDeleted))
}

// Execute performs every upload in operations, then every delete. Skips are
// ignored. The returned Result reflects the work completed before any error.
func (e *Executor) Execute(ctx context.Context, operations []*planner.Operation) (*Result, error) {
	start := time.Now()
	result := &Result{}

	err := e.executeUploads(ctx, planner.Filter(operations, planner.OperationUpload), result)
	if err == nil {
		err = e.executeDeletes(ctx, planner.Filter(operations, planner.OperationDelete), result)
	}

	result.Duration = time.Since(start)
	return result, err
}

func (e *Executor) executeUploads(ctx context.Context, operations []*planner.Operation, result *Result) error {
	if len(operations) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	for _, op := range operations {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := storage.UploadFile(gctx, e.bucket, e.fs, op.RemoteKey, op.LocalPath)
			if err != nil {
				return err
			}
			atomic.AddInt64(&result.filesUploaded, 1)
			atomic.AddInt64(&result.bytesUploaded, n)
			e.logger.InfoContext(ctx, "uploaded object",
				"key", op.RemoteKey, "bytes", n, "reason", op.Reason)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// The loop stops early on cancellation without any upload failing.
	return ctx.Err()
}

func (e *Executor) executeDeletes(ctx context.Context, operations []*planner.Operation, result *Result) error {
	for start := 0; start < len(operations); start += storage.MaxDeleteBatch {
		end := min(start+storage.MaxDeleteBatch, len(operations))
		batch := operations[start:end]

		keys := make([]string, len(batch))
		for i, op := range batch {
			keys[i] = op.RemoteKey
		}

		if err := e.bucket.Delete(ctx, keys); err != nil {
			return err
		}
		atomic.AddInt64(&result.filesDeleted, int64(len(keys)))
		for _, key := range keys {
			e.logger.InfoContext(ctx, "deleted object", "key", key)
		}
	}
	return nil
}
