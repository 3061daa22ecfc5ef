package s3

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/smithy-go"

	"github.com/uhthomas/bazel-central-registry/storage"
)

// S3 error codes that indicate the request was authenticated but not
// authorized, or not authenticated at all.
var permissionCodes = map[string]struct{}{
	"AccessDenied":          {},
	"Forbidden":             {},
	"InvalidAccessKeyId":    {},
	"SignatureDoesNotMatch": {},
	"AllAccessDisabled":     {},
	"ExpiredToken":          {},
	"InvalidToken":          {},
	"AccountProblem":        {},
}

const (
	codeNoSuchBucket = "NoSuchBucket"
	codeNoSuchKey    = "NoSuchKey"
)

type httpStatusError interface {
	HTTPStatusCode() int
}

// classify maps an SDK error onto a storage.Kind.
func classify(err error) storage.Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return storage.KindCanceled
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := permissionCodes[code]; ok {
			return storage.KindPermission
		}
		if code == codeNoSuchBucket {
			return storage.KindNotFound
		}
	}

	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return storage.KindPermission
		case http.StatusNotFound:
			return storage.KindNotFound
		}
	}

	return storage.KindTransport
}

// wrapError converts an SDK error into a *storage.Error.
func wrapError(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	return storage.NewError(op, classify(err), err).WithBucket(bucket).WithKey(key)
}

// deleteErrorKind classifies a per-key DeleteObjects failure code.
func deleteErrorKind(code string) storage.Kind {
	if _, ok := permissionCodes[code]; ok {
		return storage.KindPermission
	}
	if code == codeNoSuchBucket {
		return storage.KindNotFound
	}
	return storage.KindTransport
}

func isNoSuchBucket(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == codeNoSuchBucket
}
