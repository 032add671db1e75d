// Package session keeps one project resolved in memory and re-resolves the
// parts of it that are affected by filesystem changes.
package session

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/harrison/treesync/internal/models"
	"github.com/harrison/treesync/internal/snapshot"
	"github.com/harrison/treesync/internal/tree"
	"github.com/harrison/treesync/internal/vfs"
)

// Session owns the tree of a single project.
type Session struct {
	fs          vfs.FS
	snapshotter *snapshot.Snapshotter
	projectPath string
	tree        *tree.Tree
}

// Open resolves the project at projectPath. refl and logger may be nil; see
// snapshot.New.
func Open(fs vfs.FS, projectPath string, refl snapshot.Reflection, logger snapshot.Logger) (*Session, error) {
	projectPath, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}

	s := &Session{
		fs:          fs,
		snapshotter: snapshot.New(fs, refl, logger),
		projectPath: projectPath,
	}

	snap, err := s.snapshotter.SnapshotProject(models.InstanceContext{}, projectPath)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("project %s did not produce a root instance", projectPath)
	}

	s.tree = tree.New(snap)
	return s, nil
}

// ProjectPath returns the absolute path of the project file.
func (s *Session) ProjectPath() string {
	return s.projectPath
}

// Tree returns the session's instance tree.
func (s *Session) Tree() *tree.Tree {
	return s.tree
}

// Snapshot returns the whole tree as an InstanceSnapshot.
func (s *Session) Snapshot() *models.InstanceSnapshot {
	return s.tree.Snapshot(s.tree.Root())
}

// Refresh re-resolves the instances affected by changes to paths and
// returns their refs. Each affected instance is rebuilt from its own
// instigating source; nothing else in the tree is touched.
//
// A path with no instance of its own is attributed to the nearest ancestor
// directory that has one, so files created inside a directory re-resolve
// that directory.
func (s *Session) Refresh(paths ...string) ([]uuid.UUID, error) {
	if inv, ok := s.fs.(vfs.Invalidator); ok {
		for _, path := range paths {
			inv.Forget(filepath.Clean(path))
		}
	}

	affected := s.affectedRefs(paths)

	var refreshed []uuid.UUID
	for _, ref := range affected {
		inst, ok := s.tree.Get(ref)
		if !ok {
			continue
		}

		snap, err := s.snapshotter.Resnapshot(inst.Metadata.Context, inst.Metadata.InstigatingSource)
		if err != nil {
			return refreshed, fmt.Errorf("failed to re-resolve %q: %w", inst.Name, err)
		}
		if snap == nil && ref == s.tree.Root() {
			return refreshed, fmt.Errorf("project %s no longer produces a root instance", s.projectPath)
		}
		if err := s.tree.Replace(ref, snap); err != nil {
			return refreshed, err
		}
		refreshed = append(refreshed, ref)
	}
	return refreshed, nil
}

// affectedRefs maps changed paths to the outermost instances that must be
// re-resolved, in tree order.
func (s *Session) affectedRefs(paths []string) []uuid.UUID {
	hit := make(map[uuid.UUID]bool)
	for _, path := range paths {
		for _, ref := range s.lookup(filepath.Clean(path)) {
			hit[ref] = true
		}
	}

	var out []uuid.UUID
	order := append([]uuid.UUID{s.tree.Root()}, s.tree.Descendants(s.tree.Root())...)
	for _, ref := range order {
		if !hit[ref] {
			continue
		}
		covered := false
		for _, prev := range out {
			if s.tree.IsAncestor(prev, ref) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, ref)
		}
	}
	return out
}

func (s *Session) lookup(path string) []uuid.UUID {
	for {
		if refs := s.tree.RefsForPath(path); len(refs) > 0 {
			return refs
		}
		parent := filepath.Dir(path)
		if parent == path {
			return nil
		}
		path = parent
	}
}
