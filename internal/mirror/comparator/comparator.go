// Package comparator decides whether a local file differs from the remote
// object at the same key.
//
// The default ChecksumComparator only reports a file as unchanged when both
// the size and the MD5 digest match a single-part ETag. Every other case is
// reported as changed, so an uncertain comparison costs an upload and never
// leaves stale content behind.
package comparator

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
	"time"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/inventory"
	"github.com/uhthomas/bazel-central-registry/storage"
)

// Comparator defines the interface for comparing local and remote files.
type Comparator interface {
	// HasChanged reports whether local and remote differ.
	HasChanged(local *inventory.LocalFile, remote storage.Object) (bool, error)
}

// ChecksumComparator compares size and then the MD5 digest of the local file
// against the remote ETag.
type ChecksumComparator struct {
	fs       fsys.Filesystem
	hashFunc func() hash.Hash
}

// NewChecksumComparator creates a checksum comparator reading from fs.
func NewChecksumComparator(fs fsys.Filesystem) *ChecksumComparator {
	return &ChecksumComparator{fs: fs, hashFunc: md5.New}
}

// HasChanged implements Comparator.
func (c *ChecksumComparator) HasChanged(local *inventory.LocalFile, remote storage.Object) (bool, error) {
	if local.Size != remote.Size {
		return true, nil
	}
	if !isSinglePartETag(remote.ETag) {
		return true, nil
	}

	sum, err := checksum(c.fs, local.Path, c.hashFunc)
	if err != nil {
		return false, err
	}
	return !strings.EqualFold(sum, remote.ETag), nil
}

// SizeOnlyComparator only compares file sizes.
// This is the fastest comparator but misses changes that keep the size.
type SizeOnlyComparator struct{}

// NewSizeOnlyComparator creates a new size-only comparator.
func NewSizeOnlyComparator() *SizeOnlyComparator {
	return &SizeOnlyComparator{}
}

// HasChanged implements Comparator.
func (c *SizeOnlyComparator) HasChanged(local *inventory.LocalFile, remote storage.Object) (bool, error) {
	return local.Size != remote.Size, nil
}

// SmartComparator compares size, then MD5 when the ETag is a plain digest,
// and otherwise falls back to modification time within MaxTimeDiff.
type SmartComparator struct {
	// MaxTimeDiff is the tolerated difference between local and remote
	// modification times.
	MaxTimeDiff time.Duration

	fs fsys.Filesystem
}

// NewSmartComparator creates a smart comparator with a two second tolerance.
func NewSmartComparator(fs fsys.Filesystem) *SmartComparator {
	return &SmartComparator{MaxTimeDiff: 2 * time.Second, fs: fs}
}

// HasChanged implements Comparator.
func (c *SmartComparator) HasChanged(local *inventory.LocalFile, remote storage.Object) (bool, error) {
	if local.Size != remote.Size {
		return true, nil
	}

	if isSinglePartETag(remote.ETag) {
		sum, err := checksum(c.fs, local.Path, md5.New)
		if err == nil {
			return !strings.EqualFold(sum, remote.ETag), nil
		}
		// Unreadable locally; fall back to modification time.
	}

	diff := local.ModTime.Sub(remote.LastModified)
	if diff < 0 {
		diff = -diff
	}
	return diff > c.MaxTimeDiff, nil
}

// isSinglePartETag reports whether etag looks like a plain MD5 digest.
// Multipart uploads produce "<digest>-<parts>".
func isSinglePartETag(etag string) bool {
	if len(etag) != hex.EncodedLen(md5.Size) {
		return false
	}
	_, err := hex.DecodeString(etag)
	return err == nil
}

func checksum(fs fsys.Filesystem, path string, newHash func() hash.Hash) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", storage.NewError("checksum", storage.KindLocalInput, err).WithKey(path)
	}
	defer f.Close()

	h := newHash()
	if _, err := io.Copy(h, f); err != nil {
		return "", storage.NewError("checksum", storage.KindLocalInput,
			fmt.Errorf("failed to compute checksum: %w", err)).WithKey(path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
