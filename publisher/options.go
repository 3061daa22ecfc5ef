package publisher

import (
	"log/slog"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
)

// Comparison selects how the mirror step decides a file has changed.
type Comparison string

const (
	// ComparisonChecksum compares size and MD5 against the object ETag.
	// Anything without a single-part ETag is treated as changed.
	ComparisonChecksum Comparison = "checksum"

	// ComparisonSize compares sizes only.
	ComparisonSize Comparison = "size"

	// ComparisonSmart compares size, then MD5 where possible, then
	// modification time.
	ComparisonSmart Comparison = "smart"
)

// Option configures a Publisher.
type Option func(*config)

type config struct {
	filesystem  fsys.Filesystem
	logger      *slog.Logger
	dryRun      bool
	parallelism int
	comparison  Comparison
	exclude     []string
}

// WithRoot publishes the registry tree rooted at dir on the local disk.
// Default is the current directory.
func WithRoot(dir string) Option {
	return func(c *config) {
		c.filesystem = fsys.NewOSFS(dir)
	}
}

// WithFilesystem publishes from an arbitrary filesystem, typically an
// in-memory one in tests.
func WithFilesystem(fs fsys.Filesystem) Option {
	return func(c *config) {
		c.filesystem = fs
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithDryRun plans every step without mutating the bucket.
func WithDryRun(dryRun bool) Option {
	return func(c *config) {
		c.dryRun = dryRun
	}
}

// WithParallelism sets the number of concurrent uploads in the mirror step.
// Default is 1.
func WithParallelism(n int) Option {
	return func(c *config) {
		c.parallelism = n
	}
}

// WithComparison selects the change detection used by the mirror step.
func WithComparison(cmp Comparison) Option {
	return func(c *config) {
		c.comparison = cmp
	}
}

// WithExclude skips paths under modules/ matching any of patterns. Excluded
// local files are not uploaded and excluded remote objects are not deleted.
func WithExclude(patterns ...string) Option {
	return func(c *config) {
		c.exclude = append(c.exclude, patterns...)
	}
}
