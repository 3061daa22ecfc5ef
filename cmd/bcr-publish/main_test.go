package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhthomas/bazel-central-registry/storage/s3"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newRegistryDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bazel_registry.json"), `{"mirrors":[]}`)
	writeFile(t, filepath.Join(dir, "module_list"), "foo\n")
	writeFile(t, filepath.Join(dir, "modules", "foo", "metadata.json"), `{"versions":["1.0"]}`)
	writeFile(t, filepath.Join(dir, "modules", "foo", "1.0", "source.json"), `{}`)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(slog.New(slog.DiscardHandler))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPublish_MemoryBackend(t *testing.T) {
	dir := newRegistryDir(t)
	metricsFile := filepath.Join(t.TempDir(), "bcr.prom")

	_, err := execute(t, "--root", dir, "--backend", "memory", "--metrics-file", metricsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bcr_publish_files_uploaded_total 4")
	assert.Contains(t, string(data), "bcr_publish_last_success_timestamp_seconds")
}

func TestPublish_DryRunPrintsPlan(t *testing.T) {
	dir := newRegistryDir(t)

	out, err := execute(t, "--root", dir, "--backend", "memory", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "upload bazel_registry.json")
	assert.Contains(t, out, "upload module_list")
	assert.Contains(t, out, "upload modules/foo/1.0/source.json")
}

func TestPublish_MissingInput(t *testing.T) {
	dir := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "bcr.prom")

	_, err := execute(t, "--root", dir, "--backend", "memory", "--metrics-file", metricsFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload_descriptor")

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bcr_publish_step_failures_total{code="LOCAL_INPUT_MISSING",step="upload_descriptor"} 1`)
}

func TestPublish_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown backend", []string{"--backend", "ftp"}, "unknown backend"},
		{"minio needs endpoint", []string{"--backend", "minio"}, "--endpoint is required"},
		{"bad comparison", []string{"--backend", "memory", "--compare", "mtime"}, "unknown comparison"},
		{"positional args", []string{"extra"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"--root", t.TempDir()}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestS3Endpoint(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		endpoint string
	}{
		{"defaults", nil, s3.GCSEndpoint},
		{"other bucket", []string{"--bucket", "my-registry"}, ""},
		{"explicit endpoint", []string{"--endpoint", "http://localhost:4566"}, "http://localhost:4566"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultPublishOptions()
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			o.addFlags(fs)
			require.NoError(t, fs.Parse(tt.args))
			assert.Equal(t, tt.endpoint, s3Endpoint(o))
		})
	}
}

func TestAddAndDelete(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "module_list"), "")

	inputDir := t.TempDir()
	writeFile(t, filepath.Join(inputDir, "fix.patch"), "--- a\n+++ b\n")
	writeFile(t, filepath.Join(inputDir, "foo.json"), `{
		"name": "foo",
		"version": "1.0.0",
		"url": "https://example.com/foo.tar.gz",
		"integrity": "sha256-AAAA",
		"patches": ["fix.patch"],
		"build_targets": ["//..."]
	}`)

	out, err := execute(t, "add", "--root", root, "--input", filepath.Join(inputDir, "foo.json"),
		"--homepage", "https://example.com", "--maintainer", "Alice:alice@example.com:alice")
	require.NoError(t, err)
	assert.Contains(t, out, "foo 1.0.0 is added")

	for _, name := range []string{"MODULE.bazel", "source.json", "presubmit.yml", "patches/fix.patch"} {
		assert.FileExists(t, filepath.Join(root, "modules", "foo", "1.0.0", filepath.FromSlash(name)))
	}
	list, err := os.ReadFile(filepath.Join(root, "module_list"))
	require.NoError(t, err)
	assert.Equal(t, "foo\n", string(list))

	_, err = execute(t, "add", "--root", root, "--input", filepath.Join(inputDir, "foo.json"))
	assert.Error(t, err)

	out, err = execute(t, "delete", "--root", root, "foo", "1.0.0")
	require.NoError(t, err)
	assert.Contains(t, out, "foo 1.0.0 is deleted")
	assert.NoDirExists(t, filepath.Join(root, "modules", "foo", "1.0.0"))
}

func TestAdd_Errors(t *testing.T) {
	_, err := execute(t, "add", "--root", t.TempDir())
	assert.ErrorContains(t, err, "--input is required")

	input := filepath.Join(t.TempDir(), "m.json")
	writeFile(t, input, `{"name": "foo", "version": "1.0", "url": "u", "integrity": "i", "build_targets": ["//..."]}`)
	_, err = execute(t, "add", "--root", t.TempDir(), "--input", input, "--maintainer", "nobody")
	assert.ErrorContains(t, err, "name:email")

	_, err = execute(t, "delete", "--root", t.TempDir(), "foo")
	assert.Error(t, err)
}
