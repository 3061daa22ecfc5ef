package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
	"github.com/uhthomas/bazel-central-registry/internal/mirror"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/comparator"
	"github.com/uhthomas/bazel-central-registry/storage"
)

const (
	// DefaultBucket is the bucket the public registry is served from.
	DefaultBucket = "bcr.bazel.build"

	// DescriptorFile is the registry descriptor, uploaded first.
	DescriptorFile = "bazel_registry.json"

	// ModuleListFile is the module index, uploaded second.
	ModuleListFile = "module_list"

	// ModulesDir is the directory mirrored last. Its remote prefix is
	// ModulesDir + "/".
	ModulesDir = "modules"
)

// Step identifies one publish step.
type Step string

// Steps, in execution order.
const (
	StepDescriptor Step = "upload_descriptor"
	StepModuleList Step = "upload_module_list"
	StepModules    Step = "mirror_modules"
)

// StepStatus is the outcome of a step.
type StepStatus string

// Step statuses. StatusPlanned is used for dry runs.
const (
	StatusSucceeded StepStatus = "succeeded"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "not_run"
	StatusPlanned   StepStatus = "planned"
)

// StepResult records what a step did.
type StepResult struct {
	Step     Step
	Status   StepStatus
	Key      string
	Bytes    int64
	Duration time.Duration

	// Mirror is set for StepModules once it has run.
	Mirror *mirror.Result
}

// Result summarizes a publish run.
type Result struct {
	// Bucket is the destination bucket.
	Bucket string

	// DryRun is set when no remote mutation was attempted.
	DryRun bool

	// Steps has one entry per step, in execution order.
	Steps []StepResult

	// FilesUploaded counts uploads across all steps.
	FilesUploaded int

	// FilesSkipped counts unchanged files in the mirror step.
	FilesSkipped int

	// FilesDeleted counts deleted remote objects.
	FilesDeleted int

	// BytesUploaded counts uploaded bytes across all steps.
	BytesUploaded int64

	// Duration is how long the run took.
	Duration time.Duration
}

// Publisher publishes a registry tree to a bucket.
type Publisher struct {
	bucket storage.Bucket
	fs     fsys.Filesystem
	logger *slog.Logger
	cfg    *config
	mirror *mirror.Manager
}

type step struct {
	name Step
	run  func(ctx context.Context, sr *StepResult) error
}

// New creates a Publisher writing to bucket.
func New(bucket storage.Bucket, opts ...Option) (*Publisher, error) {
	if bucket == nil {
		return nil, fmt.Errorf("publisher: bucket is required")
	}

	cfg := &config{comparison: ComparisonChecksum}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.filesystem == nil {
		cfg.filesystem = fsys.NewOSFS(".")
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	var cmp comparator.Comparator
	switch cfg.comparison {
	case ComparisonChecksum, "":
		cmp = comparator.NewChecksumComparator(cfg.filesystem)
	case ComparisonSize:
		cmp = comparator.NewSizeOnlyComparator()
	case ComparisonSmart:
		cmp = comparator.NewSmartComparator(cfg.filesystem)
	default:
		return nil, fmt.Errorf("publisher: unknown comparison %q", cfg.comparison)
	}

	logger := cfg.logger.With("bucket", bucket.Name())
	return &Publisher{
		bucket: bucket,
		fs:     cfg.filesystem,
		logger: logger,
		cfg:    cfg,
		mirror: mirror.NewManager(cfg.filesystem, bucket,
			mirror.WithComparator(cmp),
			mirror.WithParallelism(cfg.parallelism),
			mirror.WithLogger(logger),
		),
	}, nil
}

// Publish runs the three steps in order and stops at the first failure,
// which is returned as an *Error. The Result is returned in both cases and
// marks steps after a failure as not run.
func (p *Publisher) Publish(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{Bucket: p.bucket.Name(), DryRun: p.cfg.dryRun}

	steps := []step{
		{name: StepDescriptor, run: p.putFile(DescriptorFile)},
		{name: StepModuleList, run: p.putFile(ModuleListFile)},
		{name: StepModules, run: p.mirrorModules},
	}

	p.logger.InfoContext(ctx, "publishing registry", "dry_run", p.cfg.dryRun)

	var failure *Error
	for _, s := range steps {
		sr := StepResult{Step: s.name, Status: StatusSkipped}
		if failure != nil {
			result.Steps = append(result.Steps, sr)
			continue
		}

		stepStart := time.Now()
		err := s.run(ctx, &sr)
		sr.Duration = time.Since(stepStart)

		switch {
		case err != nil:
			sr.Status = StatusFailed
			failure = newStepError(s.name, err)
			p.logger.ErrorContext(ctx, "step failed",
				"step", s.name, "code", failure.Code, "error", err)
		case p.cfg.dryRun:
			sr.Status = StatusPlanned
		default:
			sr.Status = StatusSucceeded
		}
		if err == nil {
			p.logger.InfoContext(ctx, "step finished",
				"step", s.name, "status", sr.Status, "duration", sr.Duration)
		}

		result.accumulate(&sr)
		result.Steps = append(result.Steps, sr)
	}

	result.Duration = time.Since(start)
	if failure != nil {
		return result, failure
	}
	return result, nil
}

func (r *Result) accumulate(sr *StepResult) {
	if sr.Mirror != nil {
		r.FilesUploaded += sr.Mirror.FilesUploaded
		r.FilesSkipped += sr.Mirror.FilesSkipped
		r.FilesDeleted += sr.Mirror.FilesDeleted
		r.BytesUploaded += sr.Mirror.BytesUploaded
		return
	}
	if sr.Status == StatusSucceeded {
		r.FilesUploaded++
		r.BytesUploaded += sr.Bytes
	}
}

// putFile returns a step that overwrites key with the local file of the same
// name.
func (p *Publisher) putFile(name string) func(context.Context, *StepResult) error {
	return func(ctx context.Context, sr *StepResult) error {
		sr.Key = name
		if p.cfg.dryRun {
			info, err := p.fs.Stat(name)
			if err != nil {
				return storage.NewError("upload", storage.KindLocalInput, err).WithKey(name)
			}
			if info.IsDir() {
				return storage.NewError("upload", storage.KindLocalInput,
					fmt.Errorf("%s is a directory, not a file", name)).WithKey(name)
			}
			sr.Bytes = info.Size()
			return nil
		}

		n, err := storage.UploadFile(ctx, p.bucket, p.fs, name, name)
		if err != nil {
			return err
		}
		sr.Bytes = n
		return nil
	}
}

func (p *Publisher) mirrorModules(ctx context.Context, sr *StepResult) error {
	sr.Key = ModulesDir + "/"
	res, err := p.mirror.Mirror(ctx, &mirror.Config{
		LocalPath:   ModulesDir,
		Prefix:      ModulesDir + "/",
		Exclude:     p.cfg.exclude,
		DeleteExtra: true,
		DryRun:      p.cfg.dryRun,
	})
	if res != nil {
		sr.Mirror = res
		sr.Bytes = res.BytesUploaded
	}
	return err
}
