package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/minio/minio-go/v7"

	"github.com/uhthomas/bazel-central-registry/storage"
)

const (
	codeNoSuchBucket = "NoSuchBucket"
	codeNoSuchKey    = "NoSuchKey"
)

var permissionCodes = map[string]struct{}{
	"AccessDenied":          {},
	"Forbidden":             {},
	"InvalidAccessKeyId":    {},
	"SignatureDoesNotMatch": {},
	"ExpiredToken":          {},
	"InvalidToken":          {},
}

// classify maps a minio-go error onto a storage.Kind.
func classify(err error) storage.Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return storage.KindCanceled
	}

	resp := minio.ToErrorResponse(err)
	if _, ok := permissionCodes[resp.Code]; ok {
		return storage.KindPermission
	}
	if resp.Code == codeNoSuchBucket {
		return storage.KindNotFound
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return storage.KindPermission
	}
	return storage.KindTransport
}

func wrapError(op, bucket, key string, err error) error {
	return storage.NewError(op, classify(err), err).WithBucket(bucket).WithKey(key)
}
