package registry

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
)

const (
	modulesDir     = "modules"
	moduleListFile = "module_list"
	metadataFile   = "metadata.json"
	sourceFile     = "source.json"
	presubmitFile  = "presubmit.yml"
	patchesDir     = "patches"
)

// Option configures a Client.
type Option func(*Client)

// WithSource sets the filesystem that module file references are read
// from. Defaults to the registry filesystem.
func WithSource(src fsys.Filesystem) Option {
	return func(c *Client) {
		c.src = src
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		c.logger = logger
	}
}

// Client edits the registry rooted at its filesystem.
type Client struct {
	fs     fsys.Filesystem
	src    fsys.Filesystem
	logger *slog.Logger
}

// NewClient returns a Client for the registry at the root of fs.
func NewClient(fs fsys.Filesystem, opts ...Option) *Client {
	c := &Client{
		fs:     fs,
		src:    fs,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Contains reports whether the module, or the given version of it when
// version is non-empty, is present.
func (c *Client) Contains(name, version string) (bool, error) {
	p := path.Join(modulesDir, name)
	if version != "" {
		p = path.Join(p, version)
	}
	ok, err := c.fs.IsDir(p)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", p, err)
	}
	return ok, nil
}

// InitModule creates the module directory with an empty metadata.json and
// adds name to module_list.
func (c *Client) InitModule(name string, maintainers []Maintainer, homepage string) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: bad module name %q", ErrInvalidModule, name)
	}

	exists, err := c.Contains(name, "")
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrModuleExists, name)
	}

	dir := path.Join(modulesDir, name)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating module directory: %w", err)
	}

	md := &Metadata{
		Homepage:       homepage,
		Maintainers:    slices.Clone(maintainers),
		Versions:       []string{},
		YankedVersions: map[string]string{},
	}
	if err := writeMetadata(c.fs, path.Join(dir, metadataFile), md); err != nil {
		return err
	}

	if err := c.addToModuleList(name); err != nil {
		return err
	}

	c.logger.Info("initialized module", "module", name)
	return nil
}

// ModuleList returns the entries of module_list. A missing file is empty.
func (c *Client) ModuleList() ([]string, error) {
	exists, err := c.fs.Exists(moduleListFile)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	data, err := c.fs.ReadFile(moduleListFile)
	if err != nil {
		return nil, fmt.Errorf("reading module list: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func (c *Client) addToModuleList(name string) error {
	names, err := c.ModuleList()
	if err != nil {
		return err
	}
	if !slices.Contains(names, name) {
		names = append(names, name)
	}
	slices.Sort(names)

	data := strings.Join(names, "\n") + "\n"
	if err := c.fs.WriteFile(moduleListFile, []byte(data), 0o644); err != nil {
		return fmt.Errorf("writing module list: %w", err)
	}
	return nil
}

// Add writes a new version of an initialized module and records it in
// metadata.json. A partially written version directory is removed on error.
func (c *Client) Add(m *Module) (err error) {
	if err := m.Validate(); err != nil {
		return err
	}

	exists, err := c.Contains(m.Name, "")
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s must be initialized first", ErrModuleNotFound, m.Name)
	}

	exists, err = c.Contains(m.Name, m.Version)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: version %s for module %s", ErrVersionExists, m.Version, m.Name)
	}

	dir := path.Join(modulesDir, m.Name, m.Version)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating version directory: %w", err)
	}
	defer func() {
		if err != nil {
			if rmErr := c.fs.RemoveAll(dir); rmErr != nil {
				err = errors.Join(err, rmErr)
			}
		}
	}()

	if err := c.writeModuleBazel(dir, m); err != nil {
		return err
	}
	if err := c.writeSource(dir, m); err != nil {
		return err
	}
	if err := c.writePresubmit(dir, m); err != nil {
		return err
	}

	mdPath := path.Join(modulesDir, m.Name, metadataFile)
	md, err := readMetadata(c.fs, mdPath)
	if err != nil {
		return err
	}
	if !md.HasVersion(m.Version) {
		md.Versions = append(md.Versions, m.Version)
	}
	sortVersions(md.Versions)
	if err := writeMetadata(c.fs, mdPath, md); err != nil {
		return err
	}

	c.logger.Info("added module version", "module", m.Name, "version", m.Version)
	return nil
}

func (c *Client) writeModuleBazel(dir string, m *Module) error {
	var data []byte
	if m.ModuleDotBazel != "" {
		src, err := c.src.ReadFile(m.ModuleDotBazel)
		if err != nil {
			return fmt.Errorf("reading %s: %w", m.ModuleDotBazel, err)
		}
		data = src
	} else {
		data = GenerateModuleBazel(m)
	}

	if err := ValidateModuleBazel(data, m.Name, m.Version); err != nil {
		return err
	}
	if err := c.fs.WriteFile(path.Join(dir, moduleBazelFile), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", moduleBazelFile, err)
	}
	return nil
}

// writeSource writes source.json and copies patches into dir/patches. Each
// patch is recorded with its sha256 integrity.
func (c *Client) writeSource(dir string, m *Module) error {
	source := map[string]any{
		"url":       m.URL,
		"integrity": m.Integrity,
	}
	if m.StripPrefix != "" {
		source["strip_prefix"] = m.StripPrefix
	}

	if len(m.Patches) > 0 {
		patchDir := path.Join(dir, patchesDir)
		if err := c.fs.MkdirAll(patchDir, 0o755); err != nil {
			return fmt.Errorf("creating patches directory: %w", err)
		}

		patches := make(map[string]string, len(m.Patches))
		for _, p := range m.Patches {
			data, err := c.src.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading patch %s: %w", p, err)
			}
			base := path.Base(strings.ReplaceAll(p, `\`, "/"))
			if _, dup := patches[base]; dup {
				return fmt.Errorf("%w: duplicate patch name %s", ErrInvalidModule, base)
			}
			if err := c.fs.WriteFile(path.Join(patchDir, base), data, 0o644); err != nil {
				return fmt.Errorf("copying patch %s: %w", base, err)
			}
			patches[base] = integrity(data)
		}
		source["patches"] = patches
		source["patch_strip"] = m.PatchStrip
	}

	data, err := encodeJSON(source)
	if err != nil {
		return err
	}
	if err := c.fs.WriteFile(path.Join(dir, sourceFile), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", sourceFile, err)
	}
	return nil
}

func (c *Client) writePresubmit(dir string, m *Module) error {
	var data []byte
	if m.PresubmitYML != "" {
		src, err := c.src.ReadFile(m.PresubmitYML)
		if err != nil {
			return fmt.Errorf("reading %s: %w", m.PresubmitYML, err)
		}
		if err := validatePresubmit(src); err != nil {
			return err
		}
		data = src
	} else {
		generated, err := GeneratePresubmit(m)
		if err != nil {
			return err
		}
		data = generated
	}

	if err := c.fs.WriteFile(path.Join(dir, presubmitFile), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", presubmitFile, err)
	}
	return nil
}

// Delete removes a version directory and drops it from metadata.json.
func (c *Client) Delete(name, version string) error {
	if version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidModule)
	}

	exists, err := c.Contains(name, "")
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	exists, err = c.Contains(name, version)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: version %s for module %s", ErrVersionNotFound, version, name)
	}

	if err := c.fs.RemoveAll(path.Join(modulesDir, name, version)); err != nil {
		return fmt.Errorf("removing version directory: %w", err)
	}

	mdPath := path.Join(modulesDir, name, metadataFile)
	md, err := readMetadata(c.fs, mdPath)
	if err != nil {
		return err
	}
	md.Versions = slices.DeleteFunc(md.Versions, func(v string) bool { return v == version })
	if err := writeMetadata(c.fs, mdPath, md); err != nil {
		return err
	}

	c.logger.Info("deleted module version", "module", name, "version", version)
	return nil
}

// ParseMaintainer parses "name:email[:github]".
func ParseMaintainer(s string) (Maintainer, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return Maintainer{}, fmt.Errorf("maintainer %q must be name:email[:github]", s)
	}
	m := Maintainer{Name: parts[0], Email: parts[1]}
	if len(parts) == 3 {
		m.GitHub = parts[2]
	}
	return m, nil
}

// integrity returns the subresource integrity string for data.
func integrity(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256-" + base64.StdEncoding.EncodeToString(sum[:])
}
