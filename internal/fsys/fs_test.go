package fsys

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ReadWrite(t *testing.T) {
	filesystems := map[string]*FS{
		"memory": NewInMemoryFS(),
		"os":     NewOSFS(t.TempDir()),
	}

	for name, fs := range filesystems {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fs.MkdirAll("modules/foo/1.0", 0o755))
			require.NoError(t, fs.WriteFile("modules/foo/1.0/source.json", []byte("{}"), 0o644))

			data, err := fs.ReadFile("modules/foo/1.0/source.json")
			require.NoError(t, err)
			assert.Equal(t, "{}", string(data))

			f, err := fs.Open("modules/foo/1.0/source.json")
			require.NoError(t, err)
			defer f.Close()
			got, err := io.ReadAll(f)
			require.NoError(t, err)
			assert.Equal(t, "{}", string(got))

			exists, err := fs.Exists("modules/foo/1.0/source.json")
			require.NoError(t, err)
			assert.True(t, exists)

			isDir, err := fs.IsDir("modules/foo/1.0")
			require.NoError(t, err)
			assert.True(t, isDir)

			isDir, err = fs.IsDir("modules/foo/1.0/source.json")
			require.NoError(t, err)
			assert.False(t, isDir)
		})
	}
}

func TestFS_MissingFile(t *testing.T) {
	fs := NewInMemoryFS()

	exists, err := fs.Exists("nope")
	require.NoError(t, err)
	assert.False(t, exists)

	isDir, err := fs.IsDir("nope")
	require.NoError(t, err)
	assert.False(t, isDir)

	_, err = fs.Stat("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = fs.Open("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFS_WalkAndRemoveAll(t *testing.T) {
	fs := NewInMemoryFS()
	require.NoError(t, fs.WriteFile("modules/a/1.0/MODULE.bazel", []byte("a"), 0o644))
	require.NoError(t, fs.WriteFile("modules/a/metadata.json", []byte("b"), 0o644))
	require.NoError(t, fs.WriteFile("modules/b/2.0/source.json", []byte("c"), 0o644))

	var files []string
	err := fs.Walk("modules", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, filepath.ToSlash(path))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	assert.Equal(t, []string{
		"modules/a/1.0/MODULE.bazel",
		"modules/a/metadata.json",
		"modules/b/2.0/source.json",
	}, files)

	require.NoError(t, fs.RemoveAll("modules/a"))
	exists, err := fs.Exists("modules/a/metadata.json")
	require.NoError(t, err)
	assert.False(t, exists)
}
