package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"matrixgen/internal/matrix"
)

const testTargets = `linux:
  x86_64-unknown-linux-gnu:
    arch: x86_64
    libc: gnu
    python_versions: ["3.12", "3.13"]
    build_options: ["debug", "pgo+lto"]
    build_options_conditional:
      - minimum-python-version: "3.13"
        options: ["freethreaded"]
  aarch64-unknown-linux-gnu:
    arch: aarch64
    libc: gnu
    python_versions: ["3.13"]
    build_options: ["noopt"]
darwin:
  aarch64-apple-darwin:
    arch: aarch64
    python_versions: ["3.13"]
    build_options: ["pgo+lto"]
`

const testRunners = `ubuntu-x64:
  platform: linux
  arch: x86_64
  free: true
ubuntu-arm:
  platform: linux
  arch: aarch64
macos-arm:
  platform: darwin
  arch: aarch64
  free: true
`

// setupConfigs writes fixture documents and points the path flags at
// them, restoring all flag state when the test finishes.
func setupConfigs(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	targetsPath = filepath.Join(dir, "ci-targets.yaml")
	runnersPath = filepath.Join(dir, "ci-runners.yaml")
	require.NoError(t, os.WriteFile(targetsPath, []byte(testTargets), 0o644))
	require.NoError(t, os.WriteFile(runnersPath, []byte(testRunners), 0o644))

	logger = zap.NewNop()
	t.Cleanup(func() {
		targetsPath = "ci-targets.yaml"
		runnersPath = "ci-runners.yaml"
		platformFlag = ""
		maxShards = 0
		labelsFlag = ""
		freeRunners = false
		logger = zap.NewNop()
	})
}

func generate(t *testing.T) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := runGenerate(cmd, nil)
	return buf.String(), err
}

func decodeInclude(t *testing.T, out string) []matrix.Entry {
	t.Helper()

	var doc struct {
		Include []matrix.Entry `json:"include"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	return doc.Include
}

func TestGenerate_FullMatrix(t *testing.T) {
	setupConfigs(t)

	out, err := generate(t)
	require.NoError(t, err)

	entries := decodeInclude(t, out)
	// linux/x86_64: 2x2 unconditional + 1 conditional; linux/aarch64: 1;
	// darwin: 1.
	require.Len(t, entries, 7)

	first := entries[0]
	assert.Equal(t, "x86_64", first.Arch)
	assert.Equal(t, "x86_64-unknown-linux-gnu", first.TargetTriple)
	assert.Equal(t, "ubuntu-x64", first.Runner)
	assert.Equal(t, "true", first.Run)
	assert.Equal(t, "3.12", first.Python)
	assert.Equal(t, "debug", first.BuildOptions)
	assert.Equal(t, "gnu", first.Libc)

	last := entries[6]
	assert.Equal(t, "darwin", last.Platform)
	assert.Equal(t, "macos-arm", last.Runner)
}

func TestGenerate_Idempotent(t *testing.T) {
	setupConfigs(t)

	first, err := generate(t)
	require.NoError(t, err)
	second, err := generate(t)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs must produce byte-identical output")
}

func TestGenerate_PlatformFlag(t *testing.T) {
	setupConfigs(t)
	platformFlag = "darwin"

	out, err := generate(t)
	require.NoError(t, err)

	entries := decodeInclude(t, out)
	require.Len(t, entries, 1)
	assert.Equal(t, "darwin", entries[0].Platform)
}

func TestGenerate_InvalidPlatformFlag(t *testing.T) {
	setupConfigs(t)
	platformFlag = "plan9"

	_, err := generate(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --platform")
}

func TestGenerate_SkipLabelEmptiesMatrix(t *testing.T) {
	setupConfigs(t)
	labelsFlag = "documentation"

	out, err := generate(t)
	require.NoError(t, err)
	assert.Equal(t, "{\"include\":[]}\n", out)
}

func TestGenerate_BuildLabelSubsetMatch(t *testing.T) {
	setupConfigs(t)
	labelsFlag = "build:pgo"

	out, err := generate(t)
	require.NoError(t, err)

	entries := decodeInclude(t, out)
	// "pgo" matches the "pgo+lto" entries (subset), not "debug"/"noopt"
	// or "freethreaded".
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Contains(t, entry.BuildOptions, "pgo")
	}
}

func TestGenerate_DryRunLabel(t *testing.T) {
	setupConfigs(t)
	labelsFlag = "ci:dry-run"

	out, err := generate(t)
	require.NoError(t, err)

	for _, entry := range decodeInclude(t, out) {
		assert.Equal(t, "true", entry.DryRun)
	}
}

func TestGenerate_FreeRunners(t *testing.T) {
	setupConfigs(t)
	freeRunners = true

	out, err := generate(t)
	require.NoError(t, err)

	entries := decodeInclude(t, out)
	require.Len(t, entries, 7)
	for _, entry := range entries {
		assert.Contains(t, []string{"ubuntu-x64", "macos-arm"}, entry.Runner,
			"non-free runner leaked into the matrix")
	}

	// ubuntu-arm was the only aarch64 linux runner; with it excluded the
	// aarch64 target falls back cross-arch and becomes build-only.
	for _, entry := range entries {
		if entry.TargetTriple == "aarch64-unknown-linux-gnu" {
			assert.Equal(t, "ubuntu-x64", entry.Runner)
			assert.Equal(t, "false", entry.Run)
		}
	}
}

func TestGenerate_Sharded(t *testing.T) {
	setupConfigs(t)
	maxShards = 2

	out, err := generate(t)
	require.NoError(t, err)

	var doc map[string]struct {
		Include []matrix.Entry `json:"include"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc, 2)
	assert.Len(t, doc["0"].Include, 7)
	assert.Empty(t, doc["1"].Include)
}

func TestGenerate_ShardOverflowFails(t *testing.T) {
	setupConfigs(t)

	// 20 pythons x 15 options = 300 entries: needs 2 shards.
	pythons := make([]string, 20)
	for i := range pythons {
		pythons[i] = fmt.Sprintf("%q", fmt.Sprintf("3.%d", i))
	}
	options := make([]string, 15)
	for i := range options {
		options[i] = fmt.Sprintf("%q", fmt.Sprintf("opt%d", i))
	}
	big := fmt.Sprintf(
		"linux:\n  x86_64-unknown-linux-gnu:\n    arch: x86_64\n    python_versions: [%s]\n    build_options: [%s]\n",
		strings.Join(pythons, ", "), strings.Join(options, ", "))
	require.NoError(t, os.WriteFile(targetsPath, []byte(big), 0o644))

	maxShards = 1
	_, err := generate(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires 2 shards, but the maximum is 1")

	maxShards = 2
	out, err := generate(t)
	require.NoError(t, err)

	var doc map[string]struct {
		Include []matrix.Entry `json:"include"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc["0"].Include, 256)
	assert.Len(t, doc["1"].Include, 44)
}

func TestValidateCommand(t *testing.T) {
	setupConfigs(t)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, runValidate(cmd, nil))

	out := buf.String()
	assert.Contains(t, out, "targets: OK (2 platforms, 3 targets)")
	assert.Contains(t, out, "runners: OK (3 runners)")
}

func TestValidateCommand_BadConfig(t *testing.T) {
	setupConfigs(t)
	require.NoError(t, os.WriteFile(targetsPath, []byte("linux:\n  triple:\n    arch: x86_64\n"), 0o644))

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	err := runValidate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linux/triple")
}
