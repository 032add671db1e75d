// Package variant defines the typed property values carried by instance
// snapshots and the loosely-typed values authored in project files.
package variant

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Type names a property value type. The names double as the keys used for
// fully-qualified values in project files, e.g. {"Vector3": [1, 2, 3]}.
type Type string

const (
	TypeString       Type = "String"
	TypeContent      Type = "Content"
	TypeBinaryString Type = "BinaryString"
	TypeBool         Type = "Bool"
	TypeInt32        Type = "Int32"
	TypeInt64        Type = "Int64"
	TypeFloat32      Type = "Float32"
	TypeFloat64      Type = "Float64"
	TypeVector2      Type = "Vector2"
	TypeVector3      Type = "Vector3"
	TypeColor3       Type = "Color3"
	TypeUDim         Type = "UDim"
	TypeUDim2        Type = "UDim2"
	TypeEnum         Type = "Enum"
)

var knownTypes = map[Type]bool{
	TypeString: true, TypeContent: true, TypeBinaryString: true, TypeBool: true,
	TypeInt32: true, TypeInt64: true, TypeFloat32: true, TypeFloat64: true,
	TypeVector2: true, TypeVector3: true, TypeColor3: true, TypeUDim: true,
	TypeUDim2: true, TypeEnum: true,
}

// IsKnown reports whether t is a type this package can represent.
func (t Type) IsKnown() bool {
	return knownTypes[t]
}

// Vector2 is a pair of 32-bit floats.
type Vector2 struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
}

// Vector3 is a triple of 32-bit floats.
type Vector3 struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
}

// Color3 is an RGB color with components in [0, 1].
type Color3 struct {
	R float32 `json:"r" yaml:"r"`
	G float32 `json:"g" yaml:"g"`
	B float32 `json:"b" yaml:"b"`
}

// UDim is a scale/offset pair.
type UDim struct {
	Scale  float32 `json:"scale" yaml:"scale"`
	Offset int32   `json:"offset" yaml:"offset"`
}

// UDim2 is a two dimensional UDim.
type UDim2 struct {
	X UDim `json:"x" yaml:"x"`
	Y UDim `json:"y" yaml:"y"`
}

// Variant is a resolved, typed property value.
//
// Value holds the Go representation matching Type: string for String,
// Content and BinaryString; bool; int32; int64; float32; float64; Vector2;
// Vector3; Color3; UDim; UDim2; and uint32 for Enum.
type Variant struct {
	Type  Type
	Value any
}

// String builds a String variant.
func String(s string) Variant { return Variant{Type: TypeString, Value: s} }

// Bool builds a Bool variant.
func Bool(b bool) Variant { return Variant{Type: TypeBool, Value: b} }

// Float64 builds a Float64 variant.
func Float64(f float64) Variant { return Variant{Type: TypeFloat64, Value: f} }

// Int64 builds an Int64 variant.
func Int64(i int64) Variant { return Variant{Type: TypeInt64, Value: i} }

// String renders the variant for logs and outlines.
func (v Variant) String() string {
	switch val := v.Value.(type) {
	case string:
		return fmt.Sprintf("%s(%q)", v.Type, val)
	default:
		return fmt.Sprintf("%s(%v)", v.Type, val)
	}
}

// MarshalJSON encodes the variant in its fully-qualified form, the same
// shape project files accept: {"<Type>": value}.
func (v Variant) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{string(v.Type): v.Value})
}

// MarshalYAML mirrors MarshalJSON.
func (v Variant) MarshalYAML() (any, error) {
	return map[string]any{string(v.Type): v.Value}, nil
}

// SortedKeys returns the keys of a property map in lexical order. Property
// maps are unordered; every encoder walks them through this.
func SortedKeys(props map[string]Variant) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
