package kconfig

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader holds the current config of a file and reloads it on change.
type Loader struct {
	path string
	log  *slog.Logger

	mu      sync.RWMutex
	current *Config
}

// NewLoader loads path once. A nil log discards output.
func NewLoader(path string, log *slog.Logger) (*Loader, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Loader{path: path, log: log, current: cfg}, nil
}

// Config returns the latest valid config.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Reload re-reads the file. On error the previous config is kept.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Watch calls fn with every successfully reloaded config until ctx is done.
// The directory is watched rather than the file so that editors replacing the
// file by rename are seen.
func (l *Loader) Watch(ctx context.Context, fn func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			cfg, err := l.Reload()
			if err != nil {
				l.log.Warn("Keeping previous config", "path", l.path, "error", err)
				continue
			}
			l.log.Info("Reloaded config", "path", l.path)
			fn(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.log.Warn("Config watcher error", "error", err)
		}
	}
}
