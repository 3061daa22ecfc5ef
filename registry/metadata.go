package registry

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
)

// Maintainer is a person responsible for a module.
type Maintainer struct {
	DoNotNotify  bool   `json:"do_not_notify,omitempty"`
	Email        string `json:"email,omitempty"`
	GitHub       string `json:"github,omitempty"`
	GitHubUserID int64  `json:"github_user_id,omitempty"`
	Name         string `json:"name,omitempty"`
}

// Metadata is the content of modules/<name>/metadata.json.
type Metadata struct {
	Deprecated     string            `json:"deprecated,omitempty"`
	Homepage       string            `json:"homepage"`
	Maintainers    []Maintainer      `json:"maintainers"`
	Repository     []string          `json:"repository,omitempty"`
	Versions       []string          `json:"versions"`
	YankedVersions map[string]string `json:"yanked_versions"`

	// Extra holds keys not declared above so they survive a rewrite.
	Extra map[string]json.RawMessage `json:"-"`
}

// metadataFields has the fields of Metadata without its JSON methods.
type metadataFields Metadata

var metadataKeys = map[string]struct{}{
	"deprecated":      {},
	"homepage":        {},
	"maintainers":     {},
	"repository":      {},
	"versions":        {},
	"yanked_versions": {},
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*metadataFields)(m)); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	m.Extra = nil
	for key, value := range all {
		if _, known := metadataKeys[key]; known {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[key] = value
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Keys are emitted in sorted order.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	known, err := encodeJSON((*metadataFields)(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}

	all := make(map[string]json.RawMessage, len(m.Extra)+len(metadataKeys))
	if err := json.Unmarshal(known, &all); err != nil {
		return nil, err
	}
	for key, value := range m.Extra {
		if _, known := metadataKeys[key]; !known {
			all[key] = value
		}
	}
	return encodeJSON(all)
}

// HasVersion reports whether version is listed.
func (m *Metadata) HasVersion(version string) bool {
	return slices.Contains(m.Versions, version)
}

func readMetadata(fs fsys.Filesystem, name string) (*Metadata, error) {
	data, err := fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	if md.Versions == nil {
		md.Versions = []string{}
	}
	if md.YankedVersions == nil {
		md.YankedVersions = map[string]string{}
	}
	return &md, nil
}

func writeMetadata(fs fsys.Filesystem, name string, md *Metadata) error {
	if md.Maintainers == nil {
		md.Maintainers = []Maintainer{}
	}
	data, err := encodeJSON(md)
	if err != nil {
		return err
	}
	if err := fs.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}
