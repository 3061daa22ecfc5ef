package storage_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
	"github.com/uhthomas/bazel-central-registry/storage"
	"github.com/uhthomas/bazel-central-registry/storage/memory"
)

func TestUploadFile(t *testing.T) {
	ctx := context.Background()
	fs := fsys.NewInMemoryFS()
	require.NoError(t, fs.WriteFile("bazel_registry.json", []byte(`{"a":1}`), 0o644))

	bucket := memory.New("bcr")
	n, err := storage.UploadFile(ctx, bucket, fs, "bazel_registry.json", "bazel_registry.json")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	got, ok := bucket.Get("bazel_registry.json")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))

	ct, _ := bucket.ContentType("bazel_registry.json")
	assert.Equal(t, "application/json", ct)
}

func TestUploadFile_EmptyFile(t *testing.T) {
	fs := fsys.NewInMemoryFS()
	require.NoError(t, fs.WriteFile("module_list", nil, 0o644))

	bucket := memory.New("bcr")
	n, err := storage.UploadFile(context.Background(), bucket, fs, "module_list", "module_list")
	require.NoError(t, err)
	assert.Zero(t, n)

	got, ok := bucket.Get("module_list")
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestUploadFile_LocalInputMissing(t *testing.T) {
	bucket := memory.New("bcr")
	_, err := storage.UploadFile(context.Background(), bucket, fsys.NewInMemoryFS(), "module_list", "module_list")
	require.Error(t, err)
	assert.Equal(t, storage.KindLocalInput, storage.KindOf(err))
	assert.ErrorIs(t, err, storage.ErrLocalInput)
	assert.Empty(t, bucket.Calls())
}

func TestUploadFile_Directory(t *testing.T) {
	fs := fsys.NewInMemoryFS()
	require.NoError(t, fs.MkdirAll("modules", 0o755))

	_, err := storage.UploadFile(context.Background(), memory.New("bcr"), fs, "modules", "modules")
	require.Error(t, err)
	assert.Equal(t, storage.KindLocalInput, storage.KindOf(err))
}

func TestUploadFile_BucketErrorPropagates(t *testing.T) {
	fs := fsys.NewInMemoryFS()
	require.NoError(t, fs.WriteFile("module_list", []byte("m1\n"), 0o644))

	denied := storage.NewError("put", storage.KindPermission, errors.New("AccessDenied"))
	bucket := memory.New("bcr")
	bucket.PutHook = func(string) error { return denied }

	_, err := storage.UploadFile(context.Background(), bucket, fs, "module_list", "module_list")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrAccessDenied)
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		prefix  string
	}{
		{"json", "bazel_registry.json", `{"mirrors": []}`, "application/json"},
		{"plain text", "module_list", "m1\nm2\n", "text/plain"},
		{"empty with extension", "source.json", "", "application/json"},
		{"empty without extension", "module_list", "", storage.DefaultContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader([]byte(tt.content))
			ct, err := storage.DetectContentType(r, tt.file)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(ct, tt.prefix), "got %q", ct)

			// reader must be rewound
			pos, err := r.Seek(0, 1)
			require.NoError(t, err)
			assert.Zero(t, pos)
		})
	}
}
