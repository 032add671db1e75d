// Package snapshot turns project files and filesystem paths into instance
// snapshots.
//
// The entry points are (*Snapshotter).FromPath, which dispatches on the kind
// of path it is given, and (*Snapshotter).SnapshotProject, which resolves a
// project file. Every snapshot records its instigating source so that
// (*Snapshotter).Resnapshot can rebuild exactly that subtree later.
package snapshot

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harrison/treesync/internal/models"
	"github.com/harrison/treesync/internal/project"
	"github.com/harrison/treesync/internal/reflection"
	"github.com/harrison/treesync/internal/variant"
	"github.com/harrison/treesync/internal/vfs"
)

// Logger receives the diagnostics emitted while snapshotting.
type Logger interface {
	LogWarn(message string)
	LogDebug(message string)
}

type nopLogger struct{}

func (nopLogger) LogWarn(string)  {}
func (nopLogger) LogDebug(string) {}

// Reflection is the class metadata the snapshotter needs: service tags for
// inference and property types for value resolution.
type Reflection interface {
	ClassProvider
	variant.PropertyLookup
}

// Snapshotter resolves paths and project files read through a vfs.FS.
// It holds no per-scan state; everything scan-specific travels in the
// models.InstanceContext passed to each call.
type Snapshotter struct {
	fs         vfs.FS
	reflection Reflection
	logger     Logger
}

// New creates a Snapshotter. A nil refl uses the embedded reflection
// database and a nil logger discards diagnostics.
func New(fs vfs.FS, refl Reflection, logger Logger) *Snapshotter {
	if refl == nil {
		refl = reflection.Default()
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Snapshotter{fs: fs, reflection: refl, logger: logger}
}

// FromPath snapshots whatever lives at path. It returns (nil, nil) when the
// path does not exist, is ignored by ctx, or is not a recognized file type.
func (s *Snapshotter) FromPath(ctx models.InstanceContext, path string) (*models.InstanceSnapshot, error) {
	path = filepath.Clean(path)

	if ctx.ShouldIgnore(path) {
		s.logger.LogDebug(fmt.Sprintf("Skipping ignored path %s", path))
		return nil, nil
	}

	meta, err := s.fs.Metadata(path)
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if meta.IsDir {
		return s.snapshotDir(ctx, path)
	}

	base := filepath.Base(path)
	switch {
	case project.IsProjectFile(path):
		return s.SnapshotProject(ctx, path)
	case strings.HasSuffix(base, modelSuffix):
		return s.snapshotJSONModel(ctx, path)
	case scriptClass(base) != "":
		return s.snapshotLua(ctx, path)
	case strings.HasSuffix(base, textSuffix):
		return s.snapshotText(ctx, path)
	}

	s.logger.LogDebug(fmt.Sprintf("No snapshot middleware for %s", path))
	return nil, nil
}

// Resnapshot rebuilds an instance from the source that instigated it, using
// the context it was originally resolved in.
func (s *Snapshotter) Resnapshot(ctx models.InstanceContext, source *models.InstigatingSource) (*models.InstanceSnapshot, error) {
	if source == nil {
		return nil, fmt.Errorf("instance has no instigating source")
	}

	switch source.Kind {
	case models.SourceFilePath:
		return s.FromPath(ctx, source.Path)
	case models.SourceProjectNode:
		return s.SnapshotProjectNode(ctx, source.Path, source.InstanceName, source.Node, source.ParentClass)
	default:
		return nil, fmt.Errorf("unknown instigating source kind %v", source.Kind)
	}
}

// fileMetadata is the metadata shared by all single-file snapshots.
func fileMetadata(ctx models.InstanceContext, path string) models.InstanceMetadata {
	return models.InstanceMetadata{
		InstigatingSource: models.FilePathSource(path),
		RelevantPaths:     []string{path},
		Context:           ctx,
	}
}
