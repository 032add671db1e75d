// Package vfs abstracts the filesystem reads performed while snapshotting.
//
// Two implementations are provided: OSFS reads the real filesystem through
// a bounded LRU cache, and MemoryFS holds an in-memory tree for tests and
// tooling.
package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheEntries bounds the number of file contents OSFS keeps.
const DefaultCacheEntries = 1024

// Metadata describes a filesystem entry.
type Metadata struct {
	IsDir bool
}

// FS is the read-only view of a filesystem used by the snapshotter.
// Missing paths produce errors matching fs.ErrNotExist.
type FS interface {
	// Read returns the contents of a file.
	Read(path string) ([]byte, error)
	// ReadDir returns the full paths of a directory's entries, sorted.
	ReadDir(path string) ([]string, error)
	// Metadata reports whether the path exists and is a directory.
	Metadata(path string) (Metadata, error)
}

// Invalidator is implemented by filesystems that cache reads.
type Invalidator interface {
	// Forget drops anything cached for path.
	Forget(path string)
}

// IsNotExist reports whether err says a path does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// OSFS reads from the host filesystem, caching file contents.
type OSFS struct {
	cache *lru.Cache[string, []byte]
}

// NewOSFS creates an OSFS whose cache holds at most maxEntries files.
// A non-positive maxEntries uses DefaultCacheEntries.
func NewOSFS(maxEntries int) (*OSFS, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	cache, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create read cache: %w", err)
	}
	return &OSFS{cache: cache}, nil
}

// Read implements FS.
func (o *OSFS) Read(path string) ([]byte, error) {
	path = filepath.Clean(path)
	if data, ok := o.cache.Get(path); ok {
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	o.cache.Add(path, data)
	return data, nil
}

// ReadDir implements FS.
func (o *OSFS) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, filepath.Join(path, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Metadata implements FS.
func (o *OSFS) Metadata(path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{IsDir: info.IsDir()}, nil
}

// Forget implements Invalidator.
func (o *OSFS) Forget(path string) {
	o.cache.Remove(filepath.Clean(path))
}

// cached reports whether the contents of path are currently cached.
func (o *OSFS) cached(path string) bool {
	return o.cache.Contains(filepath.Clean(path))
}
