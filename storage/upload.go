package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
)

// DefaultContentType is used when detection yields nothing better.
const DefaultContentType = "application/octet-stream"

// sniffLen is the number of leading bytes inspected for content detection.
const sniffLen = 512

// UploadFile copies the local file at path on filesystem to key in bucket,
// replacing any existing object. It returns the number of bytes uploaded.
//
// Failures to read the local file are reported with KindLocalInput; failures
// from the bucket keep the classification the backend assigned.
func UploadFile(ctx context.Context, bucket Bucket, filesystem fsys.Filesystem, key, path string) (int64, error) {
	if key == "" {
		return 0, NewError("upload", KindInvalidInput, fmt.Errorf("key cannot be empty")).WithBucket(bucket.Name())
	}

	info, err := filesystem.Stat(path)
	if err != nil {
		return 0, NewError("upload", KindLocalInput, err).WithKey(path)
	}
	if info.IsDir() {
		return 0, NewError("upload", KindLocalInput, fmt.Errorf("%s is a directory, not a file", path)).WithKey(path)
	}

	f, err := filesystem.Open(path)
	if err != nil {
		return 0, NewError("upload", KindLocalInput, err).WithKey(path)
	}
	defer f.Close()

	contentType, err := DetectContentType(f, path)
	if err != nil {
		return 0, NewError("upload", KindLocalInput, err).WithKey(path)
	}

	if err := bucket.Put(ctx, key, f, info.Size(), contentType); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// DetectContentType sniffs the leading bytes of r with mimetype, falling back
// to the extension of name. r is rewound to its start before returning.
func DetectContentType(r io.ReadSeeker, name string) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read %s for content detection: %w", name, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind %s: %w", name, err)
	}

	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil && !mt.Is(DefaultContentType) {
			return mt.String(), nil
		}
	}
	return contentTypeFromExtension(name), nil
}

func contentTypeFromExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}
