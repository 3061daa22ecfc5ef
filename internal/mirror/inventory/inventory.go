// Package inventory holds the file descriptions shared by the mirror phases.
package inventory

import "time"

// LocalFile describes a file found under the local mirror root.
type LocalFile struct {
	// Path is the path on the filesystem, including the mirror root.
	Path string

	// RelPath is the slash-separated path relative to the mirror root.
	RelPath string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the file modification time.
	ModTime time.Time
}
