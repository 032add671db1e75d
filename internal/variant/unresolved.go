package variant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrTypeMismatch is wrapped by every error produced when a raw value cannot
// be represented as the type a property requires.
var ErrTypeMismatch = errors.New("value does not match property type")

// PropertyInfo describes the declared type of one property.
type PropertyInfo struct {
	Type Type
	// Enum names the enum for Enum typed properties.
	Enum string
}

// PropertyLookup answers type questions about class properties. The
// reflection database implements it.
type PropertyLookup interface {
	PropertyInfo(className, property string) (PropertyInfo, error)
	EnumItem(enum, item string) (uint32, bool)
}

// UnresolvedValue is a property value as authored in a project file.
//
// It is either fully qualified ({"String": "hi"}), which needs no lookup, or
// ambiguous (a bare string, bool, number or array of numbers), whose type is
// decided by the class and property it is applied to.
type UnresolvedValue struct {
	qualified *Variant
	ambiguous any
}

// Qualified wraps an already typed value.
func Qualified(v Variant) UnresolvedValue {
	return UnresolvedValue{qualified: &v}
}

// Ambiguous wraps a raw value. Accepted inputs are string, bool, numbers
// (json.Number, float64, int, int64) and slices of numbers.
func Ambiguous(raw any) UnresolvedValue {
	return UnresolvedValue{ambiguous: raw}
}

// IsQualified reports whether the value carries its own type.
func (u UnresolvedValue) IsQualified() bool {
	return u.qualified != nil
}

// Clone returns a copy that shares no mutable state with u.
func (u UnresolvedValue) Clone() UnresolvedValue {
	if u.qualified != nil {
		v := *u.qualified
		return UnresolvedValue{qualified: &v}
	}
	if list, ok := u.ambiguous.([]any); ok {
		return UnresolvedValue{ambiguous: append([]any(nil), list...)}
	}
	return UnresolvedValue{ambiguous: u.ambiguous}
}

// Resolve produces a typed value for property key on className.
func (u UnresolvedValue) Resolve(className, key string, lookup PropertyLookup) (Variant, error) {
	if u.qualified != nil {
		return *u.qualified, nil
	}

	info, err := lookup.PropertyInfo(className, key)
	if err != nil {
		return Variant{}, err
	}

	return convert(info, u.ambiguous, lookup)
}

// UnmarshalJSON accepts both the fully-qualified and the ambiguous forms.
func (u *UnresolvedValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch val := raw.(type) {
	case nil:
		return errors.New("property value cannot be null")
	case map[string]any:
		if len(val) != 1 {
			return fmt.Errorf("fully-qualified property value must have exactly one key, got %d", len(val))
		}
		for key, inner := range val {
			t := Type(key)
			if !t.IsKnown() {
				return fmt.Errorf("unknown property value type %q", key)
			}
			v, err := convert(PropertyInfo{Type: t}, inner, nil)
			if err != nil {
				return err
			}
			u.qualified = &v
		}
		return nil
	case string, bool, json.Number:
		u.ambiguous = val
		return nil
	case []any:
		for i, item := range val {
			if _, ok := item.(json.Number); !ok {
				return fmt.Errorf("element %d of property value array is not a number", i)
			}
		}
		u.ambiguous = val
		return nil
	default:
		return fmt.Errorf("unsupported property value %s", string(data))
	}
}

// MarshalJSON writes the value back in the form it was authored.
func (u UnresolvedValue) MarshalJSON() ([]byte, error) {
	if u.qualified != nil {
		return u.qualified.MarshalJSON()
	}
	return json.Marshal(u.ambiguous)
}

// MarshalYAML mirrors MarshalJSON.
func (u UnresolvedValue) MarshalYAML() (any, error) {
	if u.qualified != nil {
		return u.qualified.MarshalYAML()
	}
	if n, ok := u.ambiguous.(json.Number); ok {
		return n.String(), nil
	}
	return u.ambiguous, nil
}

func mismatch(t Type, raw any) error {
	return fmt.Errorf("%w: cannot use %v (%T) as %s", ErrTypeMismatch, raw, raw, t)
}

func convert(info PropertyInfo, raw any, lookup PropertyLookup) (Variant, error) {
	t := info.Type
	switch t {
	case TypeString, TypeContent, TypeBinaryString:
		s, ok := raw.(string)
		if !ok {
			return Variant{}, mismatch(t, raw)
		}
		return Variant{Type: t, Value: s}, nil

	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return Variant{}, mismatch(t, raw)
		}
		return Variant{Type: t, Value: b}, nil

	case TypeInt32:
		n, err := toInt(raw)
		if err != nil || n < math.MinInt32 || n > math.MaxInt32 {
			return Variant{}, mismatch(t, raw)
		}
		return Variant{Type: t, Value: int32(n)}, nil

	case TypeInt64:
		n, err := toInt(raw)
		if err != nil {
			return Variant{}, mismatch(t, raw)
		}
		return Variant{Type: t, Value: n}, nil

	case TypeFloat32:
		f, err := toFloat(raw)
		if err != nil {
			return Variant{}, mismatch(t, raw)
		}
		return Variant{Type: t, Value: float32(f)}, nil

	case TypeFloat64:
		f, err := toFloat(raw)
		if err != nil {
			return Variant{}, mismatch(t, raw)
		}
		return Variant{Type: t, Value: f}, nil

	case TypeVector2:
		f, err := floats(raw, 2)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, t, err)
		}
		return Variant{Type: t, Value: Vector2{X: f[0], Y: f[1]}}, nil

	case TypeVector3:
		f, err := floats(raw, 3)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, t, err)
		}
		return Variant{Type: t, Value: Vector3{X: f[0], Y: f[1], Z: f[2]}}, nil

	case TypeColor3:
		f, err := floats(raw, 3)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, t, err)
		}
		return Variant{Type: t, Value: Color3{R: f[0], G: f[1], B: f[2]}}, nil

	case TypeUDim:
		f, err := floats(raw, 2)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, t, err)
		}
		return Variant{Type: t, Value: UDim{Scale: f[0], Offset: int32(f[1])}}, nil

	case TypeUDim2:
		f, err := floats(raw, 4)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, t, err)
		}
		return Variant{Type: t, Value: UDim2{
			X: UDim{Scale: f[0], Offset: int32(f[1])},
			Y: UDim{Scale: f[2], Offset: int32(f[3])},
		}}, nil

	case TypeEnum:
		if name, ok := raw.(string); ok {
			if lookup == nil || info.Enum == "" {
				return Variant{}, mismatch(t, raw)
			}
			value, found := lookup.EnumItem(info.Enum, name)
			if !found {
				return Variant{}, fmt.Errorf("%w: %q is not an item of enum %s", ErrTypeMismatch, name, info.Enum)
			}
			return Variant{Type: t, Value: value}, nil
		}
		n, err := toInt(raw)
		if err != nil || n < 0 || n > math.MaxUint32 {
			return Variant{}, mismatch(t, raw)
		}
		return Variant{Type: t, Value: uint32(n)}, nil
	}

	return Variant{}, fmt.Errorf("unsupported property type %q", t)
}

func toFloat(raw any) (float64, error) {
	switch n := raw.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%v is not a number", raw)
}

func toInt(raw any) (int64, error) {
	switch n := raw.(type) {
	case json.Number:
		return strconv.ParseInt(n.String(), 10, 64)
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("%v is not an integer", raw)
}

func floats(raw any, count int) ([]float32, error) {
	var items []any
	switch list := raw.(type) {
	case []any:
		items = list
	case []float64:
		for _, f := range list {
			items = append(items, f)
		}
	default:
		return nil, fmt.Errorf("expected an array of %d numbers, got %T", count, raw)
	}

	if len(items) != count {
		return nil, fmt.Errorf("expected %d numbers, got %d", count, len(items))
	}

	out := make([]float32, count)
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
