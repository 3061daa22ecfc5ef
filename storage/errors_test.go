package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"bucket and key", NewError("put", KindTransport, base).WithBucket("b").WithKey("k"), "storage.put b/k: boom"},
		{"bucket only", NewError("list", KindTransport, base).WithBucket("b"), "storage.list bucket b: boom"},
		{"key only", NewError("upload", KindLocalInput, base).WithKey("module_list"), "storage.upload module_list: boom"},
		{"bare", NewError("delete", KindTransport, base), "storage.delete: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, base)
		})
	}
}

func TestError_IsSentinel(t *testing.T) {
	assert.ErrorIs(t, NewError("put", KindPermission, errors.New("x")), ErrAccessDenied)
	assert.ErrorIs(t, NewError("list", KindNotFound, errors.New("x")), ErrBucketNotFound)
	assert.ErrorIs(t, NewError("put", KindInvalidInput, errors.New("x")), ErrInvalidInput)
	assert.ErrorIs(t, NewError("put", KindLocalInput, errors.New("x")), ErrLocalInput)
	assert.NotErrorIs(t, NewError("put", KindTransport, errors.New("x")), ErrAccessDenied)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"classified", NewError("put", KindPermission, errors.New("denied")), KindPermission},
		{"wrapped classified", fmt.Errorf("step: %w", NewError("list", KindNotFound, errors.New("x"))), KindNotFound},
		{"missing local file", fmt.Errorf("walk: %w", fs.ErrNotExist), KindLocalInput},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), KindCanceled},
		{"deadline", context.DeadlineExceeded, KindCanceled},
		{"unclassified", errors.New("connection reset"), KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
