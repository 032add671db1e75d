// Package export encodes resolved instance trees for the build command.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harrison/treesync/internal/models"
	"github.com/harrison/treesync/internal/variant"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatOutline Format = "outline"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatYAML, FormatOutline}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (valid: json, yaml, outline)", name)
}

// Node is the encoded shape of one instance.
type Node struct {
	Name                   string                     `json:"name" yaml:"name"`
	ClassName              string                     `json:"className" yaml:"className"`
	Properties             map[string]variant.Variant `json:"properties,omitempty" yaml:"properties,omitempty"`
	IgnoreUnknownInstances bool                       `json:"ignoreUnknownInstances" yaml:"ignoreUnknownInstances"`
	Source                 string                     `json:"source,omitempty" yaml:"source,omitempty"`
	RelevantPaths          []string                   `json:"relevantPaths,omitempty" yaml:"relevantPaths,omitempty"`
	Children               []*Node                    `json:"children,omitempty" yaml:"children,omitempty"`
}

// FromSnapshot converts a snapshot tree into Nodes.
func FromSnapshot(snap *models.InstanceSnapshot) *Node {
	if snap == nil {
		return nil
	}

	type pending struct {
		snap *models.InstanceSnapshot
		node *Node
	}

	root := newNode(snap)
	stack := []pending{{snap, root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range top.snap.Children {
			node := newNode(child)
			top.node.Children = append(top.node.Children, node)
			stack = append(stack, pending{child, node})
		}
	}
	return root
}

func newNode(snap *models.InstanceSnapshot) *Node {
	return &Node{
		Name:                   snap.Name,
		ClassName:              snap.ClassName,
		Properties:             snap.Properties,
		IgnoreUnknownInstances: snap.Metadata.IgnoreUnknownInstances,
		Source:                 describeSource(snap.Metadata.InstigatingSource),
		RelevantPaths:          snap.Metadata.RelevantPaths,
	}
}

func describeSource(src *models.InstigatingSource) string {
	if src == nil {
		return ""
	}
	if src.Kind == models.SourceProjectNode {
		return fmt.Sprintf("%s:%s#%s", src.Kind, src.Path, src.InstanceName)
	}
	return fmt.Sprintf("%s:%s", src.Kind, src.Path)
}

// Encode writes snap to w in the given format.
func Encode(w io.Writer, snap *models.InstanceSnapshot, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(FromSnapshot(snap))

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(FromSnapshot(snap)); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()

	case FormatOutline:
		return writeOutline(w, snap)

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// writeOutline prints one instance per line, indented by depth, with its
// properties in key order.
func writeOutline(w io.Writer, snap *models.InstanceSnapshot) error {
	if snap == nil {
		return nil
	}

	type pending struct {
		snap  *models.InstanceSnapshot
		depth int
	}

	var b strings.Builder
	stack := []pending{{snap, 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b.WriteString(strings.Repeat("  ", top.depth))
		fmt.Fprintf(&b, "%s (%s)", top.snap.Name, top.snap.ClassName)
		for _, key := range variant.SortedKeys(top.snap.Properties) {
			fmt.Fprintf(&b, " %s=%s", key, top.snap.Properties[key])
		}
		b.WriteString("\n")

		for i := len(top.snap.Children) - 1; i >= 0; i-- {
			stack = append(stack, pending{top.snap.Children[i], top.depth + 1})
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
