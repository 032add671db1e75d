package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harrison/treesync/internal/variant"
)

// Reserved node keys. Every other key of a node object is a child.
const (
	keyClassName              = "$className"
	keyPath                   = "$path"
	keyProperties             = "$properties"
	keyIgnoreUnknownInstances = "$ignoreUnknownInstances"
)

// PathNode is a node's reference to a filesystem location.
type PathNode struct {
	Path string
	// Optional paths that fail to resolve remove the node instead of
	// failing the build.
	Optional bool
}

// Required builds a required path reference.
func Required(path string) *PathNode { return &PathNode{Path: path} }

// Optional builds an optional path reference.
func Optional(path string) *PathNode { return &PathNode{Path: path, Optional: true} }

// UnmarshalJSON accepts "path", {"optional": "path"} and {"required": "path"}.
// The path must not be null or empty.
func (p *PathNode) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("%s must not be null", keyPath)
	}

	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		if plain == "" {
			return fmt.Errorf("%s must not be empty", keyPath)
		}
		*p = PathNode{Path: plain}
		return nil
	}

	var tagged map[string]*string
	if err := json.Unmarshal(data, &tagged); err != nil || len(tagged) != 1 {
		return errBadPathShape
	}

	var path *string
	optional := false
	if v, ok := tagged["optional"]; ok {
		path, optional = v, true
	} else if v, ok := tagged["required"]; ok {
		path = v
	} else {
		return errBadPathShape
	}
	if path == nil || *path == "" {
		return fmt.Errorf("%s must not be empty", keyPath)
	}

	*p = PathNode{Path: *path, Optional: optional}
	return nil
}

var errBadPathShape = fmt.Errorf("%s must be a string or an object with a single \"optional\" or \"required\" key", keyPath)

// MarshalJSON writes required paths as plain strings.
func (p PathNode) MarshalJSON() ([]byte, error) {
	if p.Optional {
		return json.Marshal(map[string]string{"optional": p.Path})
	}
	return json.Marshal(p.Path)
}

// ProjectChild is one named child of a ProjectNode.
type ProjectChild struct {
	Name string
	Node *ProjectNode
}

// ProjectNode is one authored node of a project tree, before resolution.
type ProjectNode struct {
	ClassName              string
	Path                   *PathNode
	Properties             map[string]variant.UnresolvedValue
	Children               []ProjectChild // declaration order
	IgnoreUnknownInstances *bool
}

// Child returns the child with the given name.
func (n *ProjectNode) Child(name string) (*ProjectNode, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c.Node, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the node and its subtree.
func (n *ProjectNode) Clone() *ProjectNode {
	if n == nil {
		return nil
	}

	type pending struct {
		src, dst *ProjectNode
	}

	root := n.cloneFields()
	stack := []pending{{n, root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.src.Children == nil {
			continue
		}
		top.dst.Children = make([]ProjectChild, len(top.src.Children))
		for i, c := range top.src.Children {
			dst := c.Node.cloneFields()
			top.dst.Children[i] = ProjectChild{Name: c.Name, Node: dst}
			if c.Node != nil {
				stack = append(stack, pending{c.Node, dst})
			}
		}
	}
	return root
}

// CopyWithChildren returns a copy of the node's own fields with children
// replacing its declared children. The children are used as given.
func (n *ProjectNode) CopyWithChildren(children []ProjectChild) *ProjectNode {
	out := n.cloneFields()
	if out != nil {
		out.Children = children
	}
	return out
}

// cloneFields copies everything except the children.
func (n *ProjectNode) cloneFields() *ProjectNode {
	if n == nil {
		return nil
	}

	out := &ProjectNode{ClassName: n.ClassName}
	if n.Path != nil {
		p := *n.Path
		out.Path = &p
	}
	if n.IgnoreUnknownInstances != nil {
		v := *n.IgnoreUnknownInstances
		out.IgnoreUnknownInstances = &v
	}
	if n.Properties != nil {
		out.Properties = make(map[string]variant.UnresolvedValue, len(n.Properties))
		for k, v := range n.Properties {
			out.Properties[k] = v.Clone()
		}
	}
	return out
}

// UnmarshalJSON decodes a node object while keeping the order in which
// children were declared.
func (n *ProjectNode) UnmarshalJSON(data []byte) error {
	node, err := decodeNode(json.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		return err
	}
	*n = *node
	return nil
}

// decodeFrame is a node object whose keys are still being read.
type decodeFrame struct {
	name string
	node *ProjectNode
	seen map[string]bool
}

// decodeNode reads one node object from dec. Nested children are read from
// the same token stream with an explicit stack, so every byte is scanned a
// constant number of times regardless of depth.
func decodeNode(dec *json.Decoder) (*ProjectNode, error) {
	if err := expectObject(dec); err != nil {
		return nil, err
	}

	root := &ProjectNode{}
	stack := []*decodeFrame{{node: root, seen: make(map[string]bool)}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if !dec.More() {
			// Closing brace.
			if _, err := dec.Token(); err != nil {
				return nil, nodeError(stack, err)
			}
			stack = stack[:len(stack)-1]
			continue
		}

		tok, err := dec.Token()
		if err != nil {
			return nil, nodeError(stack, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nodeError(stack, fmt.Errorf("unexpected token %v", tok))
		}

		if top.seen[key] {
			return nil, nodeError(stack, fmt.Errorf("duplicate key %q", key))
		}
		top.seen[key] = true

		if strings.HasPrefix(key, "$") {
			if err := top.node.decodeReserved(key, dec); err != nil {
				return nil, nodeError(stack, err)
			}
			continue
		}

		child := &ProjectNode{}
		stack = append(stack, &decodeFrame{name: key, node: child, seen: make(map[string]bool)})
		if err := expectObject(dec); err != nil {
			return nil, nodeError(stack, err)
		}
		top.node.Children = append(top.node.Children, ProjectChild{Name: key, Node: child})
	}
	return root, nil
}

func expectObject(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("project node must be an object")
	}
	return nil
}

// nodeError prefixes err with the child names leading to the failing node.
func nodeError(stack []*decodeFrame, err error) error {
	if len(stack) <= 1 {
		return err
	}
	names := make([]string, 0, len(stack)-1)
	for _, f := range stack[1:] {
		names = append(names, f.name)
	}
	return fmt.Errorf("%s: %w", strings.Join(names, "."), err)
}

func (n *ProjectNode) decodeReserved(key string, dec *json.Decoder) error {
	switch key {
	case keyClassName:
		if err := dec.Decode(&n.ClassName); err != nil {
			return fmt.Errorf("%s must be a string", keyClassName)
		}
		if n.ClassName == "" {
			return fmt.Errorf("%s must not be empty", keyClassName)
		}
	case keyPath:
		var p PathNode
		if err := dec.Decode(&p); err != nil {
			return err
		}
		n.Path = &p
	case keyProperties:
		props := make(map[string]variant.UnresolvedValue)
		if err := dec.Decode(&props); err != nil {
			return fmt.Errorf("%s: %w", keyProperties, err)
		}
		n.Properties = props
	case keyIgnoreUnknownInstances:
		var v *bool
		if err := dec.Decode(&v); err != nil || v == nil {
			return fmt.Errorf("%s must be a boolean", keyIgnoreUnknownInstances)
		}
		n.IgnoreUnknownInstances = v
	default:
		return fmt.Errorf("unknown reserved key %q", key)
	}
	return nil
}

// MarshalJSON encodes the node in the authored shape, reserved keys first
// and children in declaration order. Children are written with an explicit
// stack rather than nested MarshalJSON calls.
func (n ProjectNode) MarshalJSON() ([]byte, error) {
	type encodeFrame struct {
		node  *ProjectNode
		next  int
		first bool
	}

	var buf bytes.Buffer
	open := func(node *ProjectNode) (*encodeFrame, error) {
		buf.WriteByte('{')
		frame := &encodeFrame{node: node, first: true}
		if err := node.writeReserved(&buf, &frame.first); err != nil {
			return nil, err
		}
		return frame, nil
	}

	root, err := open(&n)
	if err != nil {
		return nil, err
	}
	stack := []*encodeFrame{root}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.node.Children) {
			buf.WriteByte('}')
			stack = stack[:len(stack)-1]
			continue
		}

		c := top.node.Children[top.next]
		top.next++
		if err := writeKey(&buf, &top.first, c.Name); err != nil {
			return nil, err
		}
		child := c.Node
		if child == nil {
			child = &ProjectNode{}
		}
		frame, err := open(child)
		if err != nil {
			return nil, err
		}
		stack = append(stack, frame)
	}
	return buf.Bytes(), nil
}

func (n *ProjectNode) writeReserved(buf *bytes.Buffer, first *bool) error {
	write := func(key string, value any) error {
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if err := writeKey(buf, first, key); err != nil {
			return err
		}
		buf.Write(encoded)
		return nil
	}

	if n.ClassName != "" {
		if err := write(keyClassName, n.ClassName); err != nil {
			return err
		}
	}
	if n.Path != nil {
		if err := write(keyPath, n.Path); err != nil {
			return err
		}
	}
	if len(n.Properties) > 0 {
		// encoding/json writes map keys sorted.
		if err := write(keyProperties, n.Properties); err != nil {
			return err
		}
	}
	if n.IgnoreUnknownInstances != nil {
		if err := write(keyIgnoreUnknownInstances, *n.IgnoreUnknownInstances); err != nil {
			return err
		}
	}
	return nil
}

func writeKey(buf *bytes.Buffer, first *bool, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	if !*first {
		buf.WriteByte(',')
	}
	*first = false
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}
