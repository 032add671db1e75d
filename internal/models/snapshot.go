// Package models defines the resolved instance snapshots produced by the
// snapshotter, together with their metadata and provenance.
package models

import (
	"encoding/json"

	"github.com/harrison/treesync/internal/project"
	"github.com/harrison/treesync/internal/variant"
)

// SourceKind tags an InstigatingSource.
type SourceKind int

const (
	// SourceFilePath means the instance is wholly derived from one file.
	SourceFilePath SourceKind = iota
	// SourceProjectNode means the instance was authored in a project file at
	// a known position.
	SourceProjectNode
)

// String returns the string representation of the SourceKind.
func (k SourceKind) String() string {
	switch k {
	case SourceFilePath:
		return "file"
	case SourceProjectNode:
		return "project-node"
	default:
		return "unknown"
	}
}

// InstigatingSource records what produced an instance, so that exactly
// that instance can be produced again when its inputs change.
type InstigatingSource struct {
	Kind SourceKind
	// Path is the file for SourceFilePath and the project file for
	// SourceProjectNode.
	Path string

	// The remaining fields are set for SourceProjectNode only.
	InstanceName string
	Node         *project.ProjectNode // owned copy, never the loader's node
	ParentClass  string
}

// FilePathSource builds a SourceFilePath source.
func FilePathSource(path string) *InstigatingSource {
	return &InstigatingSource{Kind: SourceFilePath, Path: path}
}

// ProjectNodeSource builds a SourceProjectNode source around node. The
// source keeps node as given, so callers pass a copy that nothing else
// mutates (see project.ProjectNode.Clone and CopyWithChildren).
func ProjectNodeSource(projectPath, instanceName string, node *project.ProjectNode, parentClass string) *InstigatingSource {
	return &InstigatingSource{
		Kind:         SourceProjectNode,
		Path:         projectPath,
		InstanceName: instanceName,
		Node:         node,
		ParentClass:  parentClass,
	}
}

// MarshalJSON encodes the source as {"FilePath": ...} or {"ProjectNode": {...}}.
func (s InstigatingSource) MarshalJSON() ([]byte, error) {
	if s.Kind == SourceFilePath {
		return json.Marshal(map[string]string{"FilePath": s.Path})
	}

	type projectNode struct {
		ProjectPath  string               `json:"projectPath"`
		InstanceName string               `json:"instanceName"`
		Node         *project.ProjectNode `json:"node"`
		ParentClass  string               `json:"parentClass,omitempty"`
	}
	return json.Marshal(map[string]projectNode{"ProjectNode": {
		ProjectPath:  s.Path,
		InstanceName: s.InstanceName,
		Node:         s.Node,
		ParentClass:  s.ParentClass,
	}})
}

// InstanceMetadata is the bookkeeping attached to every snapshot.
type InstanceMetadata struct {
	// IgnoreUnknownInstances tells a syncing runtime to leave alone
	// instances it finds that the snapshot does not describe.
	IgnoreUnknownInstances bool `json:"ignoreUnknownInstances"`

	InstigatingSource *InstigatingSource `json:"instigatingSource,omitempty"`

	// RelevantPaths are the filesystem paths whose modification should
	// re-resolve this exact instance.
	RelevantPaths []string `json:"relevantPaths,omitempty"`

	// Context is the scan context the instance was resolved in.
	Context InstanceContext `json:"-"`
}

// InstanceSnapshot is one resolved instance and its subtree.
type InstanceSnapshot struct {
	Name       string                     `json:"name"`
	ClassName  string                     `json:"className"`
	Properties map[string]variant.Variant `json:"properties,omitempty"`
	Children   []*InstanceSnapshot        `json:"children,omitempty"`
	Metadata   InstanceMetadata           `json:"metadata"`
}

// Count returns the number of instances in the subtree rooted at s.
func (s *InstanceSnapshot) Count() int {
	if s == nil {
		return 0
	}
	total := 0
	stack := []*InstanceSnapshot{s}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		total++
		stack = append(stack, top.Children...)
	}
	return total
}

// Child returns the first direct child named name.
func (s *InstanceSnapshot) Child(name string) *InstanceSnapshot {
	for _, c := range s.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}
