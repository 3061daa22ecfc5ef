package registry

import (
	"slices"

	"github.com/Masterminds/semver/v3"
)

// sortVersions orders versions by semantic version when every entry parses,
// and lexically otherwise.
func sortVersions(versions []string) {
	parsed := make(map[string]*semver.Version, len(versions))
	for _, v := range versions {
		sv, err := semver.NewVersion(v)
		if err != nil {
			slices.Sort(versions)
			return
		}
		parsed[v] = sv
	}

	slices.SortStableFunc(versions, func(a, b string) int {
		if c := parsed[a].Compare(parsed[b]); c != 0 {
			return c
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
}
