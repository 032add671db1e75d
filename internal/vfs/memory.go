package vfs

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
)

// Snapshot describes a file or directory to load into a MemoryFS.
type Snapshot struct {
	dir      bool
	contents []byte
	children map[string]Snapshot
}

// File builds a file snapshot.
func File(contents string) Snapshot {
	return Snapshot{contents: []byte(contents)}
}

// Dir builds a directory snapshot.
func Dir(children map[string]Snapshot) Snapshot {
	return Snapshot{dir: true, children: children}
}

type memEntry struct {
	dir      bool
	contents []byte
	children map[string]bool
}

// MemoryFS is an in-memory FS.
type MemoryFS struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

// NewMemoryFS returns an empty MemoryFS containing only the root directory.
func NewMemoryFS() *MemoryFS {
	root := string(filepath.Separator)
	return &MemoryFS{
		entries: map[string]*memEntry{
			root: {dir: true, children: map[string]bool{}},
		},
	}
}

// Load places snap at path, creating parent directories as needed and
// replacing anything already there.
func (m *MemoryFS) Load(path string, snap Snapshot) error {
	path = filepath.Clean(path)
	if !filepath.IsAbs(path) {
		return fmt.Errorf("memory filesystem paths must be absolute: %s", path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	m.remove(path)
	m.insert(path, snap)
	return nil
}

// Remove deletes path and everything below it.
func (m *MemoryFS) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(filepath.Clean(path))
}

func (m *MemoryFS) ensureDir(path string) error {
	entry, ok := m.entries[path]
	if ok {
		if !entry.dir {
			return fmt.Errorf("%s is a file, not a directory", path)
		}
		return nil
	}

	parent := filepath.Dir(path)
	if err := m.ensureDir(parent); err != nil {
		return err
	}
	m.entries[path] = &memEntry{dir: true, children: map[string]bool{}}
	m.entries[parent].children[path] = true
	return nil
}

func (m *MemoryFS) insert(path string, snap Snapshot) {
	if parent, ok := m.entries[filepath.Dir(path)]; ok && path != filepath.Dir(path) {
		parent.children[path] = true
	}

	if !snap.dir {
		m.entries[path] = &memEntry{contents: append([]byte(nil), snap.contents...)}
		return
	}

	m.entries[path] = &memEntry{dir: true, children: map[string]bool{}}
	for name, child := range snap.children {
		m.insert(filepath.Join(path, name), child)
	}
}

func (m *MemoryFS) remove(path string) {
	entry, ok := m.entries[path]
	if !ok {
		return
	}
	for child := range entry.children {
		m.remove(child)
	}
	delete(m.entries, path)
	if parent, ok := m.entries[filepath.Dir(path)]; ok {
		delete(parent.children, path)
	}
}

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

// Read implements FS.
func (m *MemoryFS) Read(path string) ([]byte, error) {
	path = filepath.Clean(path)
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[path]
	if !ok {
		return nil, notExist("read", path)
	}
	if entry.dir {
		return nil, fmt.Errorf("read %s: is a directory", path)
	}
	return append([]byte(nil), entry.contents...), nil
}

// ReadDir implements FS.
func (m *MemoryFS) ReadDir(path string) ([]string, error) {
	path = filepath.Clean(path)
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[path]
	if !ok {
		return nil, notExist("readdir", path)
	}
	if !entry.dir {
		return nil, fmt.Errorf("readdir %s: not a directory", path)
	}

	paths := make([]string, 0, len(entry.children))
	for child := range entry.children {
		paths = append(paths, child)
	}
	sort.Strings(paths)
	return paths, nil
}

// Metadata implements FS.
func (m *MemoryFS) Metadata(path string) (Metadata, error) {
	path = filepath.Clean(path)
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[path]
	if !ok {
		return Metadata{}, notExist("stat", path)
	}
	return Metadata{IsDir: entry.dir}, nil
}
