// Package planner turns local and remote inventories into an ordered list of
// mirror operations.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/uhthomas/bazel-central-registry/internal/mirror/comparator"
	"github.com/uhthomas/bazel-central-registry/internal/mirror/inventory"
	"github.com/uhthomas/bazel-central-registry/storage"
)

// OperationType defines the type of mirror operation.
type OperationType string

const (
	// OperationUpload indicates a file needs to be uploaded
	OperationUpload OperationType = "upload"

	// OperationDelete indicates a remote object needs to be deleted
	OperationDelete OperationType = "delete"

	// OperationSkip indicates a file is unchanged and should be skipped
	OperationSkip OperationType = "skip"
)

// Reasons attached to planned operations.
const (
	ReasonNew         = "new file"
	ReasonModified    = "modified"
	ReasonExtra       = "extra remote file"
	ReasonPlaceholder = "folder placeholder"
	ReasonUnchanged   = "unchanged"
)

var typeOrder = map[OperationType]int{
	OperationUpload: 0,
	OperationDelete: 1,
	OperationSkip:   2,
}

// Operation represents a planned mirror operation.
type Operation struct {
	// Type of operation (upload, delete, skip)
	Type OperationType

	// LocalPath is the local file path (for uploads and skips)
	LocalPath string

	// RemoteKey is the object key
	RemoteKey string

	// Size is the file or object size in bytes
	Size int64

	// Reason describes why this operation was planned
	Reason string
}

// Planner creates operation plans.
type Planner struct {
	comparator comparator.Comparator
}

// New creates a planner that uses comp to detect modified files.
func New(comp comparator.Comparator) *Planner {
	return &Planner{comparator: comp}
}

// Plan compares local files against remote objects under prefix. Uploads
// come first, then deletes, then skips; each group is ordered by key.
// Deletes are only planned when deleteExtra is set.
//
// Remote keys ending in "/" are folder placeholders. No local file can
// match one, so with deleteExtra they are all deleted except the prefix
// itself.
func (p *Planner) Plan(
	prefix string,
	local []*inventory.LocalFile,
	remote []storage.Object,
	deleteExtra bool,
) ([]*Operation, error) {
	remoteByRel := make(map[string]storage.Object, len(remote))
	var placeholders []storage.Object
	for _, obj := range remote {
		if !strings.HasPrefix(obj.Key, prefix) {
			continue
		}
		if strings.HasSuffix(obj.Key, "/") {
			if obj.Key != prefix {
				placeholders = append(placeholders, obj)
			}
			continue
		}
		remoteByRel[strings.TrimPrefix(obj.Key, prefix)] = obj
	}

	localByRel := make(map[string]struct{}, len(local))
	operations := make([]*Operation, 0, len(local)+len(remote))

	for _, file := range local {
		localByRel[file.RelPath] = struct{}{}
		op := &Operation{
			LocalPath: file.Path,
			RemoteKey: prefix + file.RelPath,
			Size:      file.Size,
		}

		obj, exists := remoteByRel[file.RelPath]
		if !exists {
			op.Type, op.Reason = OperationUpload, ReasonNew
			operations = append(operations, op)
			continue
		}

		changed, err := p.comparator.HasChanged(file, obj)
		if err != nil {
			return nil, fmt.Errorf("failed to compare %s: %w", file.RelPath, err)
		}
		if changed {
			op.Type, op.Reason = OperationUpload, ReasonModified
		} else {
			op.Type, op.Reason = OperationSkip, ReasonUnchanged
		}
		operations = append(operations, op)
	}

	if deleteExtra {
		for rel, obj := range remoteByRel {
			if _, exists := localByRel[rel]; exists {
				continue
			}
			operations = append(operations, &Operation{
				Type:      OperationDelete,
				RemoteKey: obj.Key,
				Size:      obj.Size,
				Reason:    ReasonExtra,
			})
		}
		for _, obj := range placeholders {
			operations = append(operations, &Operation{
				Type:      OperationDelete,
				RemoteKey: obj.Key,
				Size:      obj.Size,
				Reason:    ReasonPlaceholder,
			})
		}
	}

	sort.SliceStable(operations, func(i, j int) bool {
		a, b := operations[i], operations[j]
		if a.Type != b.Type {
			return typeOrder[a.Type] < typeOrder[b.Type]
		}
		return a.RemoteKey < b.RemoteKey
	})
	return operations, nil
}

// ValidatePlan checks that no key is targeted by more than one operation.
func ValidatePlan(operations []*Operation) error {
	seen := make(map[string]OperationType, len(operations))
	for _, op := range operations {
		if op.RemoteKey == "" {
			return fmt.Errorf("%s operation without a remote key", op.Type)
		}
		if prev, ok := seen[op.RemoteKey]; ok {
			return fmt.Errorf("conflicting operations on key %s: %s and %s", op.RemoteKey, prev, op.Type)
		}
		seen[op.RemoteKey] = op.Type
	}
	return nil
}

// OperationStats contains statistics about planned operations.
type OperationStats struct {
	// Number of files to upload
	Uploads int

	// Number of objects to delete
	Deletes int

	// Number of files to skip
	Skips int

	// Total bytes to upload
	BytesToUpload int64

	// Total bytes to delete
	BytesToDelete int64
}

// Stats summarizes operations.
func Stats(operations []*Operation) OperationStats {
	var stats OperationStats
	for _, op := range operations {
		switch op.Type {
		case OperationUpload:
			stats.Uploads++
			stats.BytesToUpload += op.Size
		case OperationDelete:
			stats.Deletes++
			stats.BytesToDelete += op.Size
		case OperationSkip:
			stats.Skips++
		}
	}
	return stats
}

// Filter returns the operations of the given type, preserving order.
func Filter(operations []*Operation, t OperationType) []*Operation {
	var out []*Operation
	for _, op := range operations {
		if op.Type == t {
			out = append(out, op)
		}
	}
	return out
}
