package snapshot

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/harrison/treesync/internal/models"
	"github.com/harrison/treesync/internal/project"
	"github.com/harrison/treesync/internal/variant"
)

// Properties that describe an instance's place in the tree rather than its
// state. They can never be set from a project file.
var structuralProperties = map[string]bool{
	"Name":   true,
	"Parent": true,
}

// SnapshotProject loads the project file at path and resolves its tree.
//
// The root snapshot is attributed to the project file itself, so a change
// anywhere in the file re-resolves the whole project.
func (s *Snapshotter) SnapshotProject(ctx models.InstanceContext, path string) (*models.InstanceSnapshot, error) {
	path = filepath.Clean(path)

	if ctx.InProject(path) {
		return nil, &IncludeCycleError{Chain: append(ctx.ProjectChain(), path)}
	}

	data, err := s.fs.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file %s: %w", path, err)
	}

	proj, err := project.Load(data, path)
	if err != nil {
		return nil, err
	}

	s.logger.LogDebug(fmt.Sprintf("Resolving project %q from %s", proj.Name, path))

	inner := ctx.EnterProject(path)
	if len(proj.GlobIgnorePaths) > 0 {
		rules := make([]models.PathIgnoreRule, 0, len(proj.GlobIgnorePaths))
		for _, glob := range proj.GlobIgnorePaths {
			rules = append(rules, models.PathIgnoreRule{Glob: glob, BasePath: proj.FolderLocation()})
		}
		inner = inner.AddPathIgnoreRules(rules...)
	}

	snap, err := s.SnapshotProjectNode(inner, path, proj.Name, proj.Tree, "")
	if err != nil || snap == nil {
		return nil, err
	}

	// Re-running a FilePath source starts from the caller's context, before
	// the project was entered.
	snap.Metadata.InstigatingSource = models.FilePathSource(path)
	snap.Metadata.RelevantPaths = append(snap.Metadata.RelevantPaths, path)
	snap.Metadata.Context = ctx
	return snap, nil
}

// nodeFrame is one project node whose declared children are still being
// resolved.
type nodeFrame struct {
	name        string
	node        *project.ProjectNode
	parentClass string
	className   string
	properties  map[string]variant.Variant
	children    []*models.InstanceSnapshot
	metadata    models.InstanceMetadata
	next        int
	// owned holds a private copy of each declared child, in declaration
	// order, shared with that child's own instigating source.
	owned []project.ProjectChild
}

// SnapshotProjectNode resolves node, named name, and its declared subtree.
// parentClass is the class of the enclosing instance, or "" at a project
// root. It returns (nil, nil) when an optional path leaves the node with no
// class.
//
// Declared children are walked with an explicit stack, so deep project
// trees do not grow the goroutine stack.
func (s *Snapshotter) SnapshotProjectNode(ctx models.InstanceContext, projectPath, name string, node *project.ProjectNode, parentClass string) (*models.InstanceSnapshot, error) {
	root, err := s.openNode(ctx, projectPath, name, node, parentClass)
	if err != nil || root == nil {
		return nil, err
	}

	stack := []*nodeFrame{root}
	for {
		top := stack[len(stack)-1]

		if top.next < len(top.node.Children) {
			child := top.node.Children[top.next]
			top.next++

			frame, err := s.openNode(ctx, projectPath, child.Name, child.Node, top.className)
			if err != nil {
				return nil, err
			}
			if frame != nil {
				stack = append(stack, frame)
			} else {
				top.owned = append(top.owned, project.ProjectChild{Name: child.Name, Node: child.Node.Clone()})
			}
			continue
		}

		snap, err := s.closeNode(ctx, projectPath, top)
		if err != nil {
			return nil, err
		}

		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return snap, nil
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, snap)
		parent.owned = append(parent.owned, project.ProjectChild{Name: top.name, Node: snap.Metadata.InstigatingSource.Node})
	}
}

// openNode delegates to the node's path, if any, and decides its class.
func (s *Snapshotter) openNode(ctx models.InstanceContext, projectPath, name string, node *project.ProjectNode, parentClass string) (*nodeFrame, error) {
	frame := &nodeFrame{
		name:        name,
		node:        node,
		parentClass: parentClass,
		properties:  make(map[string]variant.Variant),
	}

	candidates := ClassCandidates{Explicit: node.ClassName}

	if node.Path != nil {
		candidates.PathKind = PathRequired
		if node.Path.Optional {
			candidates.PathKind = PathOptional
		}

		fsPath := node.Path.Path
		if !filepath.IsAbs(fsPath) {
			fsPath = filepath.Join(filepath.Dir(projectPath), fsPath)
		}

		snap, err := s.FromPath(ctx, fsPath)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			candidates.FromPath = snap.ClassName
			maps.Copy(frame.properties, snap.Properties)
			frame.children = append(frame.children, snap.Children...)
			frame.metadata = snap.Metadata
			frame.metadata.RelevantPaths = slices.Clone(snap.Metadata.RelevantPaths)
		}
	}

	candidates.Inferred = InferClassName(s.reflection, name, parentClass)

	decision := DecideClassName(candidates)
	switch decision.Outcome {
	case OutcomeResolved:
		frame.className = decision.ClassName
		return frame, nil

	case OutcomeNoInstance:
		s.logger.LogDebug(fmt.Sprintf("Optional path %s for instance %q did not exist, skipping", node.Path.Path, name))
		return nil, nil

	case OutcomeConflict:
		return nil, &ConflictError{
			InstanceName:   name,
			ProjectClass:   decision.Explicit,
			PathClass:      decision.FromPath,
			ProjectPath:    projectPath,
			FilesystemPath: node.Path.Path,
		}

	case OutcomeUnresolvedPath:
		return nil, &UnresolvedPathError{InstanceName: name, ProjectPath: projectPath, Path: node.Path.Path}

	default:
		return nil, &MissingInformationError{InstanceName: name, ProjectPath: projectPath}
	}
}

// closeNode applies the node's declared properties and metadata once all of
// its children have been resolved.
func (s *Snapshotter) closeNode(ctx models.InstanceContext, projectPath string, frame *nodeFrame) (*models.InstanceSnapshot, error) {
	node := frame.node

	for _, key := range sortedKeys(node.Properties) {
		if structuralProperties[key] {
			s.logger.LogWarn(fmt.Sprintf("Property %q cannot be set from a project file and was ignored (instance %q in %s)",
				key, frame.name, projectPath))
			continue
		}

		value, err := node.Properties[key].Resolve(frame.className, key, s.reflection)
		if err != nil {
			return nil, &PropertyResolutionError{
				InstanceName: frame.name,
				ClassName:    frame.className,
				Property:     key,
				ProjectPath:  projectPath,
				Err:          err,
			}
		}
		frame.properties[key] = value
	}

	switch {
	case node.IgnoreUnknownInstances != nil:
		frame.metadata.IgnoreUnknownInstances = *node.IgnoreUnknownInstances
	case node.Path == nil:
		frame.metadata.IgnoreUnknownInstances = true
	}

	// Each node is copied once; descendants' copies are shared rather than
	// cloned again at every ancestor.
	owned := node.CopyWithChildren(frame.owned)
	frame.metadata.InstigatingSource = models.ProjectNodeSource(projectPath, frame.name, owned, frame.parentClass)
	frame.metadata.Context = ctx

	return &models.InstanceSnapshot{
		Name:       frame.name,
		ClassName:  frame.className,
		Properties: frame.properties,
		Children:   frame.children,
		Metadata:   frame.metadata,
	}, nil
}
