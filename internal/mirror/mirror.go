// Package mirror makes the objects under a bucket prefix match a local
// directory tree.
//
// A run has three phases: build the local and remote inventories, plan the
// operations with a comparator, then execute uploads followed by deletes.
// The first error in any phase aborts the run.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/comparator"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/executor"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/planner"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/scanner"
	"github.com/uhthomas/bazel-central-registry/storage"
)

// Config holds configuration for a mirror run.
type Config struct {
	// LocalPath is the local directory to mirror from.
	LocalPath string

	// Prefix is the key prefix to mirror to. A trailing slash is added if
	// missing.
	Prefix string

	// Include and Exclude are glob patterns applied to paths relative to
	// LocalPath and to keys relative to Prefix. Unmatched paths are neither
	// uploaded nor deleted.
	Include []string
	Exclude []string

	// DeleteExtra deletes remote objects under Prefix with no local
	// counterpart.
	DeleteExtra bool

	// DryRun plans without mutating the bucket.
	DryRun bool
}

// Result contains the results of a mirror run.
type Result struct {
	// FilesUploaded is the number of files uploaded
	FilesUploaded int

	// FilesSkipped is the number of files skipped (unchanged)
	FilesSkipped int

	// FilesDeleted is the number of objects deleted
	FilesDeleted int

	// BytesUploaded is the total bytes uploaded
	BytesUploaded int64

	// Operations is the executed plan, or the planned one for a dry run.
	Operations []*planner.Operation

	// Duration is how long the run took
	Duration time.Duration
}

// Manager coordinates the mirror phases.
type Manager struct {
	scanner  *scanner.Scanner
	planner  *planner.Planner
	executor *executor.Executor
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	comparator  comparator.Comparator
	parallelism int
	logger      *slog.Logger
}

// WithComparator overrides the default checksum comparator.
func WithComparator(c comparator.Comparator) Option {
	return func(o *options) {
		o.comparator = c
	}
}

// WithParallelism sets the number of concurrent uploads.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewManager creates a Manager mirroring from filesystem into bucket.
func NewManager(filesystem fsys.Filesystem, bucket storage.Bucket, opts ...Option) *Manager {
	o := &options{parallelism: executor.DefaultParallelism}
	for _, opt := range opts {
		opt(o)
	}
	if o.comparator == nil {
		o.comparator = comparator.NewChecksumComparator(filesystem)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	return &Manager{
		scanner:  scanner.New(filesystem, bucket),
		planner:  planner.New(o.comparator),
		executor: executor.New(bucket, filesystem, o.parallelism, o.logger),
		logger:   o.logger,
	}
}

// Mirror runs the three phases for cfg.
func (m *Manager) Mirror(ctx context.Context, cfg *Config) (*Result, error) {
	start := time.Now()

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	// Phase 1: inventory
	matcher, err := scanner.NewPatternMatcher(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, storage.NewError("mirror", storage.KindInvalidInput, err)
	}
	local, err := m.scanner.ScanLocal(ctx, cfg.LocalPath, matcher)
	if err != nil {
		return nil, fmt.Errorf("failed to scan local directory: %w", err)
	}
	remote, err := m.scanner.ScanRemote(ctx, prefix, matcher)
	if err != nil {
		return nil, fmt.Errorf("failed to scan remote prefix: %w", err)
	}
	m.logger.DebugContext(ctx, "built inventory", "local", len(local), "remote", len(remote), "prefix", prefix)

	// Phase 2: plan
	operations, err := m.planner.Plan(prefix, local, remote, cfg.DeleteExtra)
	if err != nil {
		return nil, fmt.Errorf("failed to plan operations: %w", err)
	}
	if err := planner.ValidatePlan(operations); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	stats := planner.Stats(operations)
	m.logger.InfoContext(ctx, "planned mirror",
		"prefix", prefix,
		"uploads", stats.Uploads,
		"deletes", stats.Deletes,
		"skips", stats.Skips,
		"bytes", stats.BytesToUpload,
		"dry_run", cfg.DryRun,
	)

	result := &Result{
		FilesSkipped: stats.Skips,
		Operations:   operations,
	}
	if cfg.DryRun {
		result.Duration = time.Since(start)
		return result, nil
	}

	// Phase 3: execute
	execResult, err := m.executor.Execute(ctx, operations)
	result.FilesUploaded = execResult.FilesUploaded()
	result.BytesUploaded = execResult.BytesUploaded()
	result.FilesDeleted = execResult.FilesDeleted()
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("failed to execute operations: %w", err)
	}
	return result, nil
}
