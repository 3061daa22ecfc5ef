// Package fsys provides the filesystem abstraction used by the publisher and
// the registry editor. It is backed by go-billy so that the OS filesystem and
// an in-memory filesystem can be swapped freely, which keeps every component
// testable without touching disk.
package fsys

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// File is an open, read-only view of a file.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
	Name() string
}

// Filesystem is the set of filesystem operations the module needs.
// Paths are slash or OS separated and relative to the filesystem root.
type Filesystem interface {
	Open(name string) (File, error)
	Stat(name string) (os.FileInfo, error)
	Exists(name string) (bool, error)
	IsDir(name string) (bool, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	RemoveAll(path string) error
	Walk(root string, walkFn filepath.WalkFunc) error
}

// FS implements Filesystem using go-billy.
type FS struct {
	fs billy.Filesystem
}

// Open implements Filesystem.Open.
//
//nolint:ireturn // callers only need the File behavior.
func (b *FS) Open(name string) (File, error) {
	f, err := b.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("fsys: open %q: %w", name, err)
	}
	return f, nil
}

// Stat implements Filesystem.Stat.
func (b *FS) Stat(name string) (os.FileInfo, error) {
	info, err := b.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("fsys: stat %q: %w", name, err)
	}
	return info, nil
}

// Exists implements Filesystem.Exists.
func (b *FS) Exists(name string) (bool, error) {
	_, err := b.fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("fsys: stat %q: %w", name, err)
	}
}

// IsDir reports whether name exists and is a directory.
func (b *FS) IsDir(name string) (bool, error) {
	info, err := b.fs.Stat(name)
	switch {
	case err == nil:
		return info.IsDir(), nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("fsys: stat %q: %w", name, err)
	}
}

// ReadFile implements Filesystem.ReadFile.
func (b *FS) ReadFile(name string) ([]byte, error) {
	data, err := util.ReadFile(b.fs, name)
	if err != nil {
		return nil, fmt.Errorf("fsys: readfile %q: %w", name, err)
	}
	return data, nil
}

// WriteFile implements Filesystem.WriteFile.
func (b *FS) WriteFile(name string, data []byte, perm os.FileMode) error {
	if err := util.WriteFile(b.fs, name, data, perm); err != nil {
		return fmt.Errorf("fsys: writefile %q: %w", name, err)
	}
	return nil
}

// MkdirAll implements Filesystem.MkdirAll.
func (b *FS) MkdirAll(path string, perm os.FileMode) error {
	if err := b.fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("fsys: mkdirall %q: %w", path, err)
	}
	return nil
}

// RemoveAll implements Filesystem.RemoveAll.
func (b *FS) RemoveAll(path string) error {
	if err := util.RemoveAll(b.fs, path); err != nil {
		return fmt.Errorf("fsys: removeall %q: %w", path, err)
	}
	return nil
}

// Walk implements Filesystem.Walk. Errors returned by walkFn are passed
// through unwrapped so callers can match on them.
func (b *FS) Walk(root string, walkFn filepath.WalkFunc) error {
	return util.Walk(b.fs, root, walkFn)
}

// NewOSFS returns a filesystem rooted at dir on the local disk.
func NewOSFS(dir string) *FS {
	return &FS{fs: osfs.New(dir)}
}

// NewInMemoryFS returns an empty in-memory filesystem.
func NewInMemoryFS() *FS {
	return &FS{fs: memfs.New()}
}
