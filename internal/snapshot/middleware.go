package snapshot

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/harrison/treesync/internal/models"
	"github.com/harrison/treesync/internal/project"
	"github.com/harrison/treesync/internal/variant"
)

const (
	modelSuffix = ".model.json"
	textSuffix  = ".txt"
)

// Script suffixes, longest first so that ".server.lua" wins over ".lua".
var scriptSuffixes = []struct {
	suffix string
	class  string
}{
	{".server.luau", "Script"},
	{".server.lua", "Script"},
	{".client.luau", "LocalScript"},
	{".client.lua", "LocalScript"},
	{".luau", "ModuleScript"},
	{".lua", "ModuleScript"},
}

// scriptClass returns the script class for a file name and "" for files
// that are not scripts.
func scriptClass(base string) string {
	class, _ := splitScript(base)
	return class
}

func splitScript(base string) (class, name string) {
	for _, s := range scriptSuffixes {
		if strings.HasSuffix(base, s.suffix) && len(base) > len(s.suffix) {
			return s.class, strings.TrimSuffix(base, s.suffix)
		}
	}
	return "", ""
}

// snapshotDir turns a directory into a project, when it holds a
// default.project.json, or into a Folder of its entries.
func (s *Snapshotter) snapshotDir(ctx models.InstanceContext, path string) (*models.InstanceSnapshot, error) {
	projectPath := filepath.Join(path, project.DefaultFileName)
	if meta, err := s.fs.Metadata(projectPath); err == nil && !meta.IsDir {
		return s.SnapshotProject(ctx, projectPath)
	}

	entries, err := s.fs.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	children := make([]*models.InstanceSnapshot, 0, len(entries))
	for _, entry := range entries {
		child, err := s.FromPath(ctx, entry)
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}

	return &models.InstanceSnapshot{
		Name:       filepath.Base(path),
		ClassName:  FolderClass,
		Properties: map[string]variant.Variant{},
		Children:   children,
		Metadata:   fileMetadata(ctx, path),
	}, nil
}

func (s *Snapshotter) snapshotLua(ctx models.InstanceContext, path string) (*models.InstanceSnapshot, error) {
	contents, err := s.fs.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}

	class, name := splitScript(filepath.Base(path))
	return &models.InstanceSnapshot{
		Name:       name,
		ClassName:  class,
		Properties: map[string]variant.Variant{"Source": variant.String(string(contents))},
		Metadata:   fileMetadata(ctx, path),
	}, nil
}

func (s *Snapshotter) snapshotText(ctx models.InstanceContext, path string) (*models.InstanceSnapshot, error) {
	contents, err := s.fs.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file %s: %w", path, err)
	}

	return &models.InstanceSnapshot{
		Name:       strings.TrimSuffix(filepath.Base(path), textSuffix),
		ClassName:  "StringValue",
		Properties: map[string]variant.Variant{"Value": variant.String(string(contents))},
		Metadata:   fileMetadata(ctx, path),
	}, nil
}

// jsonModel is the on-disk shape of a .model.json file.
type jsonModel struct {
	Name       string                             `json:"Name,omitempty"`
	ClassName  string                             `json:"ClassName"`
	Properties map[string]variant.UnresolvedValue `json:"Properties,omitempty"`
	Children   []jsonModel                        `json:"Children,omitempty"`
}

// snapshotJSONModel builds a whole subtree from one file. The root takes its
// name from the file; every descendant must name itself.
func (s *Snapshotter) snapshotJSONModel(ctx models.InstanceContext, path string) (*models.InstanceSnapshot, error) {
	data, err := s.fs.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	var model jsonModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), modelSuffix)
	if model.Name != "" && model.Name != name {
		s.logger.LogWarn(fmt.Sprintf("Model %s sets Name %q, using the file name %q instead", path, model.Name, name))
	}

	root, err := s.buildModel(ctx, path, name, &model)
	if err != nil {
		return nil, err
	}
	root.Metadata.RelevantPaths = []string{path}
	return root, nil
}

// buildModel converts a model subtree. Model descendants share the file's
// source and have no relevant paths of their own: a change to the file
// re-resolves the model root.
func (s *Snapshotter) buildModel(ctx models.InstanceContext, path, name string, model *jsonModel) (*models.InstanceSnapshot, error) {
	if model.ClassName == "" {
		return nil, fmt.Errorf("model %s: instance %q is missing ClassName", path, name)
	}

	props := make(map[string]variant.Variant, len(model.Properties))
	for _, key := range sortedKeys(model.Properties) {
		if structuralProperties[key] {
			s.logger.LogWarn(fmt.Sprintf("Property %q cannot be set from a model file and was ignored (instance %q in %s)", key, name, path))
			continue
		}
		value, err := model.Properties[key].Resolve(model.ClassName, key, s.reflection)
		if err != nil {
			return nil, &PropertyResolutionError{
				InstanceName: name,
				ClassName:    model.ClassName,
				Property:     key,
				ProjectPath:  path,
				Err:          err,
			}
		}
		props[key] = value
	}

	children := make([]*models.InstanceSnapshot, 0, len(model.Children))
	for i := range model.Children {
		child := &model.Children[i]
		if child.Name == "" {
			return nil, fmt.Errorf("model %s: child %d of %q is missing Name", path, i, name)
		}
		snap, err := s.buildModel(ctx, path, child.Name, child)
		if err != nil {
			return nil, err
		}
		children = append(children, snap)
	}

	return &models.InstanceSnapshot{
		Name:       name,
		ClassName:  model.ClassName,
		Properties: props,
		Children:   children,
		Metadata: models.InstanceMetadata{
			InstigatingSource: models.FilePathSource(path),
			Context:           ctx,
		},
	}, nil
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
