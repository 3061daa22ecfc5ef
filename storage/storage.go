// Package storage defines the object-store contract the publisher writes to.
//
// A Bucket is bound to a single remote bucket and exposes only the three
// operations publishing needs: overwrite an object, list a prefix and delete
// a set of keys. Backends live in sub-packages:
//
//   - storage/s3: AWS SDK v2 (Amazon S3, GCS XML interoperability, LocalStack)
//   - storage/minio: minio-go (MinIO and other S3-compatible services)
//   - storage/memory: an in-process bucket for tests and local dry runs
package storage

import (
	"context"
	"io"
	"time"
)

// MaxDeleteBatch is the largest number of keys a single Delete call accepts.
// It matches the S3 multi-object delete limit.
const MaxDeleteBatch = 1000

// Object describes a remote object.
type Object struct {
	// Key is the full object key, including any prefix.
	Key string

	// Size is the object size in bytes.
	Size int64

	// ETag is the entity tag with surrounding quotes removed.
	ETag string

	// LastModified is when the object was last written.
	LastModified time.Time
}

// Bucket is a remote object container.
//
// Implementations must be safe for sequential use; the publisher never issues
// concurrent calls unless parallel mirroring is explicitly enabled, in which
// case Put and Delete must also be safe for concurrent use.
type Bucket interface {
	// Name returns the bucket name.
	Name() string

	// Put writes body to key, replacing any existing object.
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error

	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Delete removes the given keys. At most MaxDeleteBatch keys may be passed.
	// Deleting a key that does not exist is not an error.
	Delete(ctx context.Context, keys []string) error
}
