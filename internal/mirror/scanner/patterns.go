package scanner

import (
	"fmt"
	"path"
	"strings"
)

// PatternMatcher filters slash-separated relative paths with glob patterns.
//
// Supported forms are path.Match globs ("*.json"), directory patterns with a
// trailing slash ("foo/") and a single recursive wildcard ("foo/**",
// "**/presubmit.yml"). A pattern without a slash also matches the base name.
type PatternMatcher struct {
	include []string
	exclude []string
}

// NewPatternMatcher validates and returns a matcher for the given patterns.
func NewPatternMatcher(include, exclude []string) (*PatternMatcher, error) {
	for _, patterns := range [][]string{include, exclude} {
		for i, p := range patterns {
			if err := validatePattern(p); err != nil {
				return nil, &PatternError{Pattern: p, Index: i, Err: err}
			}
		}
	}
	return &PatternMatcher{include: include, exclude: exclude}, nil
}

// Match reports whether relPath passes the filters. Excludes take precedence;
// with no include patterns every path not excluded matches.
func (pm *PatternMatcher) Match(relPath string) bool {
	for _, p := range pm.exclude {
		if matchPattern(relPath, p) {
			return false
		}
	}
	if len(pm.include) == 0 {
		return true
	}
	for _, p := range pm.include {
		if matchPattern(relPath, p) {
			return true
		}
	}
	return false
}

func matchPattern(name, pattern string) bool {
	if dir, ok := strings.CutSuffix(pattern, "/"); ok {
		return name == dir || strings.HasPrefix(name, dir+"/")
	}

	if prefix, suffix, ok := strings.Cut(pattern, "**"); ok {
		if !strings.HasPrefix(name, prefix) {
			return false
		}
		rest := strings.TrimPrefix(name, prefix)
		suffix = strings.TrimPrefix(suffix, "/")
		if suffix == "" {
			return true
		}
		// The suffix may match any trailing run of path segments.
		segments := strings.Split(rest, "/")
		for i := range segments {
			if ok, _ := path.Match(suffix, strings.Join(segments[i:], "/")); ok {
				return true
			}
		}
		return false
	}

	if ok, _ := path.Match(pattern, name); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(name))
		return ok
	}
	return false
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty pattern")
	}
	if strings.Count(pattern, "**") > 1 {
		return fmt.Errorf("at most one ** is supported")
	}
	glob := strings.ReplaceAll(pattern, "**", "*")
	if _, err := path.Match(glob, ""); err != nil {
		return err
	}
	return nil
}

// PatternError reports an invalid include or exclude pattern.
type PatternError struct {
	Pattern string
	Index   int
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern at index %d %q: %v", e.Index, e.Pattern, e.Err)
}

// Unwrap returns the underlying error.
func (e *PatternError) Unwrap() error {
	return e.Err
}
