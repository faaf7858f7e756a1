package command

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/fatih/color"

	"github.com/birdayz/streamc/ktopology"
)

const sensors = "../../../../internal/appdesc/testdata/sensors.yaml"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-format", "console"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "streamc", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.NotZero(t, cmd.PersistentFlags().Lookup("log-format"))

	compile, _, err := cmd.Find([]string{"compile"})
	assert.NoError(t, err)
	assert.NotZero(t, compile.Flags().Lookup("watch"))
}

func TestCompileToStdout(t *testing.T) {
	stdout, stderr, err := execute(t, "compile", sensors)
	assert.NoError(t, err)

	var topo ktopology.Topology
	assert.NoError(t, json.Unmarshal([]byte(stdout), &topo))
	assert.Equal(t, "sensors", topo.Name)
	// src, three model replicas, sink, ctl
	assert.Equal(t, 6, len(topo.Nodes))
	assert.Equal(t, 1, len(topo.ConsistentRegions))
	assert.Contains(t, stderr, "Compiled sensors")
	assert.Contains(t, stderr, "parallel scoring×3")
}

func TestCompileWithConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "streamc.yaml")
	assert.NoError(t, os.WriteFile(cfg, []byte("parallel_widths: {scoring: 2}\nsubmission_values: {dir: /in}\n"), 0o600))
	out := filepath.Join(dir, "out")

	_, _, err := execute(t, "compile", "--config", cfg, "--out", out, sensors)
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "sensors.topology.json"))
	assert.NoError(t, err)
	var topo ktopology.Topology
	assert.NoError(t, json.Unmarshal(data, &topo))
	assert.Equal(t, 5, len(topo.Nodes))
	assert.Equal(t, []ktopology.SubmissionValue{{Name: "dir", Value: "/in"}}, topo.SubmissionValues)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no files", args: []string{"compile"}},
		{name: "missing file", args: []string{"compile", "does-not-exist.yaml"}},
		{name: "watch without config", args: []string{"compile", "--watch", sensors}},
		{name: "publish without config", args: []string{"compile", "--publish", sensors}},
		{name: "bad log format", args: []string{"--log-format", "xml", "compile", sensors}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
