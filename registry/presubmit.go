package registry

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// presubmitPlatforms are the platforms a generated presubmit.yml targets.
var presubmitPlatforms = []string{"linux", "macos", "windows"}

type presubmitTask struct {
	BuildTargets []string `yaml:"build_targets,omitempty"`
	TestTargets  []string `yaml:"test_targets,omitempty"`
}

type presubmit struct {
	Platforms map[string]presubmitTask `yaml:"platforms"`
}

// GeneratePresubmit renders a presubmit.yml that builds and tests m's
// targets on every supported platform.
func GeneratePresubmit(m *Module) ([]byte, error) {
	p := presubmit{Platforms: make(map[string]presubmitTask, len(presubmitPlatforms))}
	for _, platform := range presubmitPlatforms {
		p.Platforms[platform] = presubmitTask{
			BuildTargets: m.BuildTargets,
			TestTargets:  m.TestTargets,
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encoding presubmit: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding presubmit: %w", err)
	}
	return buf.Bytes(), nil
}

// validatePresubmit checks that data is a YAML mapping.
func validatePresubmit(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: parsing presubmit.yml: %v", ErrInvalidModule, err)
	}
	return nil
}
