// Package registry edits a local Bazel registry tree.
//
// A registry root contains bazel_registry.json, module_list and a modules/
// directory with one directory per module:
//
//	modules/<name>/metadata.json
//	modules/<name>/<version>/MODULE.bazel
//	modules/<name>/<version>/source.json
//	modules/<name>/<version>/presubmit.yml
//	modules/<name>/<version>/patches/*.patch
//
// Client initializes modules and adds or deletes versions. The publisher
// uploads the resulting tree unchanged.
package registry
