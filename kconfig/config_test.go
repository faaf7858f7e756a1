package kconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

const sample = `
name: sensors
trace_level: debug
parallel_widths:
  par: 4
  "wrap.*": 2
  "*": 8
submission_values:
  dir: /tmp/in
publish:
  brokers: [localhost:9092]
  topic: topologies
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	assert.NoError(t, err)
	assert.Equal(t, "sensors", cfg.Name)
	assert.Equal(t, "debug", cfg.TraceLevel)
	assert.Equal(t, map[string]string{"dir": "/tmp/in"}, cfg.SubmissionValues)
	assert.True(t, cfg.Publish.Enabled())
	assert.Equal(t, int32(1), cfg.Publish.Partitions)
	assert.Equal(t, int16(1), cfg.Publish.Replicas)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "zero width", yaml: "parallel_widths: {par: 0}"},
		{name: "bad glob", yaml: "parallel_widths: {\"[par\": 2}"},
		{name: "trace level", yaml: "trace_level: chatty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}

	_, err := Parse([]byte("parallel_widths: [1, 2]"))
	assert.Error(t, err)
}

func TestWidthFor(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	assert.NoError(t, err)

	tests := []struct {
		names []string
		want  int
	}{
		{names: []string{"par", "x"}, want: 4},
		{names: []string{"other", "wrap.inner"}, want: 8},
		{names: []string{"wrap.inner"}, want: 2},
	}
	for _, tt := range tests {
		got, ok := cfg.WidthFor(tt.names...)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, "names %v", tt.names)
	}

	none := &Config{ParallelWidths: map[string]int{"par": 2}}
	_, ok := none.WidthFor("other")
	assert.False(t, ok)

	var unset *Config
	_, ok = unset.WidthFor("par")
	assert.False(t, ok)
}

func TestLoaderReload(t *testing.T) {
	p := filepath.Join(t.TempDir(), "streamc.yaml")
	assert.NoError(t, os.WriteFile(p, []byte("parallel_widths: {par: 2}"), 0o600))

	l, err := NewLoader(p, nil)
	assert.NoError(t, err)
	w, _ := l.Config().WidthFor("par")
	assert.Equal(t, 2, w)

	assert.NoError(t, os.WriteFile(p, []byte("parallel_widths: {par: 0}"), 0o600))
	_, err = l.Reload()
	assert.Error(t, err)
	w, _ = l.Config().WidthFor("par")
	assert.Equal(t, 2, w)
}

func TestLoaderWatch(t *testing.T) {
	p := filepath.Join(t.TempDir(), "streamc.yaml")
	assert.NoError(t, os.WriteFile(p, []byte("parallel_widths: {par: 2}"), 0o600))
	l, err := NewLoader(p, nil)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx, func(c *Config) { reloaded <- c }) }()

	// The watcher is registered asynchronously; keep writing until it sees one.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-reloaded:
			w, _ := c.WidthFor("par")
			assert.Equal(t, 5, w)
			cancel()
			assert.NoError(t, <-done)
			return
		case <-tick.C:
			assert.NoError(t, os.WriteFile(p, []byte("parallel_widths: {par: 5}"), 0o600))
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}
