// Package output writes compiled topologies to disk.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/birdayz/streamc/ktopology"
)

// Suffix is appended to the application name to form the file name.
const Suffix = ".topology.json"

// Dir writes topology files into one directory. Writes are atomic: readers
// see either the previous or the new file, never a partial one.
type Dir struct {
	Path string
	lock sync.Mutex
}

func NewDir(path string) *Dir {
	return &Dir{Path: path}
}

// FileName returns the path the topology of app is written to.
func (d *Dir) FileName(app string) string {
	return filepath.Join(d.Path, app+Suffix)
}

// Write stores topo as indented JSON.
func (d *Dir) Write(topo *ktopology.Topology) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return WriteAtomic(d.FileName(topo.Name), func(w io.Writer) error {
		return Encode(w, topo)
	})
}

// Read loads the topology of app.
func (d *Dir) Read(app string) (*ktopology.Topology, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	data, err := os.ReadFile(d.FileName(app))
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	var topo ktopology.Topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("decode topology %s: %w", app, err)
	}
	return &topo, nil
}

// Encode writes topo as indented JSON followed by a newline.
func Encode(w io.Writer, topo *ktopology.Topology) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(topo); err != nil {
		return fmt.Errorf("encode topology %s: %w", topo.Name, err)
	}
	return nil
}

// WriteAtomic writes path through a temp file that is synced and renamed
// into place, then syncs the parent directory.
func WriteAtomic(path string, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	fail := func(err error) error {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	writer := bufio.NewWriter(file)
	if err := fill(writer); err != nil {
		return fail(err)
	}
	if err := writer.Flush(); err != nil {
		return fail(fmt.Errorf("flush buffer: %w", err))
	}
	if err := file.Sync(); err != nil {
		return fail(fmt.Errorf("sync %s: %w", tmpPath, err))
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}

	// The rename is only durable once the directory entry is flushed.
	if runtime.GOOS != "windows" {
		dirFile, err := os.Open(dir)
		if err != nil {
			return fmt.Errorf("open directory for fsync: %w", err)
		}
		defer func() { _ = dirFile.Close() }()
		if err := dirFile.Sync(); err != nil {
			return fmt.Errorf("fsync directory: %w", err)
		}
	}
	return nil
}
