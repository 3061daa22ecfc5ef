// Package scanner builds the local and remote inventories for a mirror run.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/inventory"
	"github.com/uhthomas/bazel-central-registry/storage"
)

// Scanner lists files on a local filesystem and objects in a bucket.
type Scanner struct {
	filesystem fsys.Filesystem
	bucket     storage.Bucket
}

// New creates a scanner over filesystem and bucket.
func New(filesystem fsys.Filesystem, bucket storage.Bucket) *Scanner {
	return &Scanner{filesystem: filesystem, bucket: bucket}
}

// ScanLocal walks root and returns every regular file accepted by matcher,
// sorted by relative path. A missing or non-directory root is a local input
// error.
func (s *Scanner) ScanLocal(ctx context.Context, root string, matcher *PatternMatcher) ([]*inventory.LocalFile, error) {
	info, err := s.filesystem.Stat(root)
	if err != nil {
		return nil, storage.NewError("scan", storage.KindLocalInput, err).WithKey(root)
	}
	if !info.IsDir() {
		return nil, storage.NewError("scan", storage.KindLocalInput,
			fmt.Errorf("%s is not a directory", root)).WithKey(root)
	}

	var files []*inventory.LocalFile
	err = s.filesystem.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return storage.NewError("scan", storage.KindLocalInput, err).WithKey(path)
		}
		if info.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return storage.NewError("scan", storage.KindLocalInput,
				fmt.Errorf("failed to get relative path for %s: %w", path, err)).WithKey(path)
		}
		rel = filepath.ToSlash(rel)

		if matcher != nil && !matcher.Match(rel) {
			return nil
		}

		files = append(files, &inventory.LocalFile{
			Path:    path,
			RelPath: rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// ScanRemote lists every object under prefix whose key, relative to prefix,
// is accepted by matcher. Keys outside prefix are dropped so that nothing
// else in the bucket is ever considered.
func (s *Scanner) ScanRemote(ctx context.Context, prefix string, matcher *PatternMatcher) ([]storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objects, err := s.bucket.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	filtered := objects[:0]
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, prefix) {
			continue
		}
		if matcher != nil && !matcher.Match(strings.TrimPrefix(obj.Key, prefix)) {
			continue
		}
		filtered = append(filtered, obj)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Key < filtered[j].Key })
	return filtered, nil
}
