package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
)

// DefaultCompatibilityLevel is used when a module does not set one.
const DefaultCompatibilityLevel = 1

// Dependency is a bazel_dep of a module. It is encoded in JSON as a
// [name, version] pair.
type Dependency struct {
	Name    string
	Version string
}

// MarshalJSON implements json.Marshaler.
func (d Dependency) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{d.Name, d.Version})
}

// UnmarshalJSON accepts a [name, version] pair or a {"name", "version"} object.
func (d *Dependency) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("dependency must be a [name, version] pair, got %d elements", len(pair))
		}
		d.Name, d.Version = pair[0], pair[1]
		return nil
	}

	var obj struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decoding dependency: %w", err)
	}
	d.Name, d.Version = obj.Name, obj.Version
	return nil
}

// CompatibilityLevel is a module compatibility level. It decodes from a JSON
// number or a numeric string.
type CompatibilityLevel int

// UnmarshalJSON implements json.Unmarshaler.
func (l *CompatibilityLevel) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*l = DefaultCompatibilityLevel
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("compatibility_level %s is not an integer", data)
	}
	*l = CompatibilityLevel(n)
	return nil
}

// Module describes one version of a module to add to the registry.
//
// File references (ModuleDotBazel, Patches, PresubmitYML) are paths on the
// client's source filesystem.
type Module struct {
	BuildTargets       []string           `json:"build_targets,omitempty"`
	CompatibilityLevel CompatibilityLevel `json:"compatibility_level"`
	Deps               []Dependency       `json:"deps,omitempty"`
	Integrity          string             `json:"integrity"`
	ModuleDotBazel     string             `json:"module_dot_bazel,omitempty"`
	Name               string             `json:"name"`
	PatchStrip         int                `json:"patch_strip,omitempty"`
	Patches            []string           `json:"patches,omitempty"`
	PresubmitYML       string             `json:"presubmit_yml,omitempty"`
	StripPrefix        string             `json:"strip_prefix,omitempty"`
	TestTargets        []string           `json:"test_targets,omitempty"`
	URL                string             `json:"url"`
	Version            string             `json:"version"`
}

// NewModule returns a Module with the default compatibility level.
func NewModule(name, version string) *Module {
	return &Module{Name: name, Version: version, CompatibilityLevel: DefaultCompatibilityLevel}
}

// AddDep appends a bazel_dep.
func (m *Module) AddDep(name, version string) *Module {
	m.Deps = append(m.Deps, Dependency{Name: name, Version: version})
	return m
}

// SetSource sets the archive location.
func (m *Module) SetSource(url, integrity, stripPrefix string) *Module {
	m.URL = url
	m.Integrity = integrity
	m.StripPrefix = stripPrefix
	return m
}

// Validate reports whether m has everything Add needs.
func (m *Module) Validate() error {
	var missing []string
	for field, value := range map[string]string{
		"name":      m.Name,
		"version":   m.Version,
		"url":       m.URL,
		"integrity": m.Integrity,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: missing %s", ErrInvalidModule, strings.Join(missing, ", "))
	}
	if strings.ContainsAny(m.Name, `/\`) || strings.ContainsAny(m.Version, `/\`) {
		return fmt.Errorf("%w: name and version must not contain path separators", ErrInvalidModule)
	}
	if m.PresubmitYML == "" && len(m.BuildTargets) == 0 && len(m.TestTargets) == 0 {
		return fmt.Errorf("%w: build targets and test targets cannot both be empty", ErrInvalidModule)
	}
	for _, dep := range m.Deps {
		if dep.Name == "" || dep.Version == "" {
			return fmt.Errorf("%w: dependency %q needs a name and a version", ErrInvalidModule, dep.Name)
		}
	}
	return nil
}

// LoadModule reads a Module from a JSON file.
func LoadModule(fs fsys.Filesystem, name string) (*Module, error) {
	data, err := fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading module file: %w", err)
	}

	m := NewModule("", "")
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalidModule, name, err)
	}
	return m, nil
}

// Dump writes m as JSON to name.
func (m *Module) Dump(fs fsys.Filesystem, name string) error {
	data, err := encodeJSON(m)
	if err != nil {
		return err
	}
	if err := fs.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("writing module file: %w", err)
	}
	return nil
}

// encodeJSON renders v with four-space indentation and a trailing newline.
// Map keys are emitted in sorted order.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return buf.Bytes(), nil
}
