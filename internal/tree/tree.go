// Package tree holds resolved instances in memory, addressed by uuid refs.
//
// A Tree is built from an InstanceSnapshot and indexes every instance by the
// filesystem paths relevant to it, so that a change to a path can be mapped
// back to the instances that must be re-resolved.
package tree

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/harrison/treesync/internal/models"
	"github.com/harrison/treesync/internal/variant"
)

var (
	// ErrNotFound is returned for refs that are not in the tree.
	ErrNotFound = errors.New("instance not found")
	// ErrRemoveRoot is returned when an operation would remove the root.
	ErrRemoveRoot = errors.New("the root instance cannot be removed")
)

// Instance is one node of a Tree.
type Instance struct {
	Ref        uuid.UUID
	Parent     uuid.UUID // uuid.Nil for the root
	Name       string
	ClassName  string
	Properties map[string]variant.Variant
	Children   []uuid.UUID
	Metadata   models.InstanceMetadata
}

// Tree is a mutable instance tree. It is not safe for concurrent use.
type Tree struct {
	root      uuid.UUID
	instances map[uuid.UUID]*Instance
	byPath    map[string][]uuid.UUID
}

// New builds a tree from snap, which must not be nil.
func New(snap *models.InstanceSnapshot) *Tree {
	t := &Tree{
		instances: make(map[uuid.UUID]*Instance),
		byPath:    make(map[string][]uuid.UUID),
	}
	t.root = t.insert(uuid.Nil, snap)
	return t
}

// Root returns the ref of the root instance.
func (t *Tree) Root() uuid.UUID {
	return t.root
}

// Len returns the number of instances in the tree.
func (t *Tree) Len() int {
	return len(t.instances)
}

// Get returns the instance for ref.
func (t *Tree) Get(ref uuid.UUID) (*Instance, bool) {
	inst, ok := t.instances[ref]
	return inst, ok
}

// Child returns the first child of ref named name.
func (t *Tree) Child(ref uuid.UUID, name string) (*Instance, bool) {
	inst, ok := t.instances[ref]
	if !ok {
		return nil, false
	}
	for _, childRef := range inst.Children {
		if child := t.instances[childRef]; child.Name == name {
			return child, true
		}
	}
	return nil, false
}

// Descendants returns every instance below ref in depth-first order.
func (t *Tree) Descendants(ref uuid.UUID) []uuid.UUID {
	inst, ok := t.instances[ref]
	if !ok {
		return nil
	}

	var out []uuid.UUID
	stack := slices.Clone(inst.Children)
	slices.Reverse(stack)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, top)

		children := t.instances[top].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

// IsAncestor reports whether ancestor is a strict ancestor of ref.
func (t *Tree) IsAncestor(ancestor, ref uuid.UUID) bool {
	inst, ok := t.instances[ref]
	for ok && inst.Parent != uuid.Nil {
		if inst.Parent == ancestor {
			return true
		}
		inst, ok = t.instances[inst.Parent]
	}
	return false
}

// RefsForPath returns the instances that list path among their relevant
// paths.
func (t *Tree) RefsForPath(path string) []uuid.UUID {
	return slices.Clone(t.byPath[filepath.Clean(path)])
}

// Replace swaps the subtree at ref for snap. The instance at ref keeps its
// ref and position; its descendants get new refs. A nil snap removes the
// subtree.
func (t *Tree) Replace(ref uuid.UUID, snap *models.InstanceSnapshot) error {
	inst, ok := t.instances[ref]
	if !ok {
		return fmt.Errorf("replace %s: %w", ref, ErrNotFound)
	}
	if snap == nil {
		return t.Remove(ref)
	}

	for _, child := range inst.Children {
		t.removeSubtree(child)
	}
	t.unindex(inst)

	inst.Name = snap.Name
	inst.ClassName = snap.ClassName
	inst.Properties = maps.Clone(snap.Properties)
	inst.Metadata = snap.Metadata
	inst.Children = nil
	t.index(inst)

	t.insertChildren(ref, snap.Children)
	return nil
}

// Remove deletes the subtree at ref.
func (t *Tree) Remove(ref uuid.UUID) error {
	inst, ok := t.instances[ref]
	if !ok {
		return fmt.Errorf("remove %s: %w", ref, ErrNotFound)
	}
	if ref == t.root {
		return ErrRemoveRoot
	}

	parent := t.instances[inst.Parent]
	parent.Children = slices.DeleteFunc(parent.Children, func(c uuid.UUID) bool { return c == ref })
	t.removeSubtree(ref)
	return nil
}

// Snapshot converts the subtree at ref back into an InstanceSnapshot.
func (t *Tree) Snapshot(ref uuid.UUID) *models.InstanceSnapshot {
	inst, ok := t.instances[ref]
	if !ok {
		return nil
	}

	type pending struct {
		inst *Instance
		out  *models.InstanceSnapshot
	}

	root := t.toSnapshot(inst)
	stack := []pending{{inst, root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(top.inst.Children) == 0 {
			continue
		}

		top.out.Children = make([]*models.InstanceSnapshot, 0, len(top.inst.Children))
		for _, childRef := range top.inst.Children {
			child := t.instances[childRef]
			out := t.toSnapshot(child)
			top.out.Children = append(top.out.Children, out)
			stack = append(stack, pending{child, out})
		}
	}
	return root
}

func (t *Tree) toSnapshot(inst *Instance) *models.InstanceSnapshot {
	return &models.InstanceSnapshot{
		Name:       inst.Name,
		ClassName:  inst.ClassName,
		Properties: maps.Clone(inst.Properties),
		Metadata:   inst.Metadata,
	}
}

// insert adds snap and its subtree under parent and returns the new ref.
func (t *Tree) insert(parent uuid.UUID, snap *models.InstanceSnapshot) uuid.UUID {
	ref := t.add(parent, snap)
	t.insertChildren(ref, snap.Children)
	return ref
}

func (t *Tree) insertChildren(parent uuid.UUID, children []*models.InstanceSnapshot) {
	type pending struct {
		parent uuid.UUID
		snap   *models.InstanceSnapshot
	}

	// Siblings are pushed in reverse so they pop, and are appended to their
	// parent, in order.
	stack := make([]pending, 0, len(children))
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, pending{parent, children[i]})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ref := t.add(top.parent, top.snap)
		parentInst := t.instances[top.parent]
		parentInst.Children = append(parentInst.Children, ref)

		for i := len(top.snap.Children) - 1; i >= 0; i-- {
			stack = append(stack, pending{ref, top.snap.Children[i]})
		}
	}
}

func (t *Tree) add(parent uuid.UUID, snap *models.InstanceSnapshot) uuid.UUID {
	inst := &Instance{
		Ref:        uuid.New(),
		Parent:     parent,
		Name:       snap.Name,
		ClassName:  snap.ClassName,
		Properties: maps.Clone(snap.Properties),
		Metadata:   snap.Metadata,
	}
	t.instances[inst.Ref] = inst
	t.index(inst)
	return inst.Ref
}

func (t *Tree) removeSubtree(ref uuid.UUID) {
	for _, r := range append(t.Descendants(ref), ref) {
		if inst, ok := t.instances[r]; ok {
			t.unindex(inst)
			delete(t.instances, r)
		}
	}
}

func (t *Tree) index(inst *Instance) {
	for _, path := range inst.Metadata.RelevantPaths {
		path = filepath.Clean(path)
		t.byPath[path] = append(t.byPath[path], inst.Ref)
	}
}

func (t *Tree) unindex(inst *Instance) {
	for _, path := range inst.Metadata.RelevantPaths {
		path = filepath.Clean(path)
		refs := slices.DeleteFunc(t.byPath[path], func(r uuid.UUID) bool { return r == inst.Ref })
		if len(refs) == 0 {
			delete(t.byPath, path)
		} else {
			t.byPath[path] = refs
		}
	}
}
