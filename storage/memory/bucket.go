// Package memory provides an in-process storage.Bucket.
//
// The bucket keeps objects in a map, computes S3-style MD5 ETags and records
// every mutating call, which makes it suitable for exercising the publisher
// end to end without a network. Fault hooks allow individual calls to fail.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/uhthomas/bazel-central-registry/storage"
)

// Call records a mutating call made against the bucket.
type Call struct {
	// Op is "put" or "delete".
	Op string

	// Key is the affected object key.
	Key string
}

type object struct {
	data         []byte
	contentType  string
	etag         string
	lastModified time.Time
}

// Bucket is a thread-safe in-memory bucket.
type Bucket struct {
	name string

	mu      sync.Mutex
	objects map[string]object
	calls   []Call
	now     func() time.Time

	// PutHook, when set, is consulted before each Put. A non-nil error fails
	// the call without storing anything.
	PutHook func(key string) error

	// ListHook, when set, is consulted before each List.
	ListHook func(prefix string) error

	// DeleteHook, when set, is consulted before each Delete.
	DeleteHook func(keys []string) error
}

// New creates an empty bucket with the given name.
func New(name string) *Bucket {
	return &Bucket{
		name:    name,
		objects: make(map[string]object),
		now:     time.Now,
	}
}

// Name implements storage.Bucket.
func (b *Bucket) Name() string {
	return b.name
}

// Put implements storage.Bucket.
func (b *Bucket) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return storage.NewError("put", storage.KindCanceled, err).WithBucket(b.name).WithKey(key)
	}
	if b.PutHook != nil {
		if err := b.PutHook(key); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return storage.NewError("put", storage.KindLocalInput, err).WithBucket(b.name).WithKey(key)
	}
	if int64(len(data)) != size {
		return storage.NewError("put", storage.KindInvalidInput,
			fmt.Errorf("body is %d bytes, expected %d", len(data), size)).WithBucket(b.name).WithKey(key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{
		data:         data,
		contentType:  contentType,
		etag:         etag(data),
		lastModified: b.now(),
	}
	b.calls = append(b.calls, Call{Op: "put", Key: key})
	return nil
}

// List implements storage.Bucket. Objects are returned in key order.
func (b *Bucket) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.NewError("list", storage.KindCanceled, err).WithBucket(b.name)
	}
	if b.ListHook != nil {
		if err := b.ListHook(prefix); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var objects []storage.Object
	for key, obj := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		objects = append(objects, storage.Object{
			Key:          key,
			Size:         int64(len(obj.data)),
			ETag:         obj.etag,
			LastModified: obj.lastModified,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Delete implements storage.Bucket.
func (b *Bucket) Delete(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return storage.NewError("delete", storage.KindCanceled, err).WithBucket(b.name)
	}
	if len(keys) > storage.MaxDeleteBatch {
		return storage.NewError("delete", storage.KindInvalidInput,
			fmt.Errorf("%d keys exceeds the batch limit of %d", len(keys), storage.MaxDeleteBatch)).WithBucket(b.name)
	}
	if b.DeleteHook != nil {
		if err := b.DeleteHook(keys); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.objects, key)
		b.calls = append(b.calls, Call{Op: "delete", Key: key})
	}
	return nil
}

// Seed stores data at key without recording a call.
func (b *Bucket) Seed(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{
		data:         append([]byte(nil), data...),
		contentType:  storage.DefaultContentType,
		etag:         etag(data),
		lastModified: b.now(),
	}
}

// Get returns the content stored at key.
func (b *Bucket) Get(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// ContentType returns the content type stored with key.
func (b *Bucket) ContentType(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	return obj.contentType, ok
}

// Keys returns every stored key in order.
func (b *Bucket) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of every object's content keyed by object key.
func (b *Bucket) Snapshot() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := make(map[string]string, len(b.objects))
	for key, obj := range b.objects {
		snap[key] = string(obj.data)
	}
	return snap
}

// Calls returns the mutating calls recorded so far.
func (b *Bucket) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// ResetCalls clears the call log.
func (b *Bucket) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

var _ storage.Bucket = (*Bucket)(nil)
