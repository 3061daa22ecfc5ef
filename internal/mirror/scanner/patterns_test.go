package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatcher_Match(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		path    string
		want    bool
	}{
		{"no patterns", nil, nil, "foo/1.0/source.json", true},
		{"base name glob", []string{"*.json"}, nil, "foo/1.0/source.json", true},
		{"base name glob miss", []string{"*.json"}, nil, "foo/1.0/MODULE.bazel", false},
		{"full path glob", []string{"foo/*/source.json"}, nil, "foo/1.0/source.json", true},
		{"directory pattern", []string{"foo/"}, nil, "foo/1.0/source.json", true},
		{"directory pattern miss", []string{"foo/"}, nil, "foobar/1.0/source.json", false},
		{"recursive prefix", []string{"foo/**"}, nil, "foo/1.0/patches/a.patch", true},
		{"recursive suffix", []string{"**/presubmit.yml"}, nil, "foo/1.0/presubmit.yml", true},
		{"recursive suffix miss", []string{"**/presubmit.yml"}, nil, "foo/1.0/source.json", false},
		{"exclude wins", []string{"foo/**"}, []string{"*.patch"}, "foo/1.0/patches/a.patch", false},
		{"exclude only", nil, []string{".DS_Store"}, "foo/.DS_Store", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, err := NewPatternMatcher(tt.include, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pm.Match(tt.path))
		})
	}
}

func TestNewPatternMatcher_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
	}{
		{"bad bracket", []string{"[a-"}, nil},
		{"two recursive", nil, []string{"**/x/**"}},
		{"empty", []string{""}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPatternMatcher(tt.include, tt.exclude)
			require.Error(t, err)
			var pe *PatternError
			assert.ErrorAs(t, err, &pe)
		})
	}
}
