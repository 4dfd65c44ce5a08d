// Package value implements the value model adapter: a thin wrapper around
// an externally supplied dynamic value type. The engine core never inspects
// a Value's representation beyond the operations this package exposes —
// empty?, type-of, dotted-path field access, and type-compatible
// assignment.
package value

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/morrisxyang/xreflect"
)

// Value is the opaque carrier instructions and variables exchange. Access goes
// through Field/SetField/Assign/IsEmpty/TypeName, or Raw for the underlying
// Go representation.
type Value struct {
	typeName string
	data     any
}

// Empty is the zero Value: no type, no data.
var Empty = Value{}

// New wraps data, tagging it with typeName. typeName is opaque bookkeeping
// the AnyType registry assigns; the core never parses it.
func New(typeName string, data any) Value {
	return Value{typeName: typeName, data: data}
}

// IsEmpty reports whether the value carries no data.
func (v Value) IsEmpty() bool {
	return v.data == nil
}

// TypeName returns the value's declared type name.
func (v Value) TypeName() string {
	return v.typeName
}

// Raw returns the underlying Go representation. Instructions use it for
// numeric, array and boolean handling and for comparisons.
func (v Value) Raw() any {
	return v.data
}

// Field reads the value at the given dotted path, e.g. "status.code". It
// returns (value, false) if the path does not resolve.
func (v Value) Field(path string) (Value, bool) {
	if v.data == nil {
		return Empty, false
	}
	if path == "" {
		return v, true
	}
	if asMap, ok := v.data.(map[string]any); ok {
		return fieldFromMap(asMap, path)
	}
	field, err := xreflect.EmbedField(v.data, path)
	if err != nil || !field.IsValid() {
		return Empty, false
	}
	return New("", field.Interface()), true
}

func fieldFromMap(m map[string]any, path string) (Value, bool) {
	key, rest := splitPath(path)
	child, ok := m[key]
	if !ok {
		return Empty, false
	}
	if rest == "" {
		return New("", child), true
	}
	if childMap, ok := child.(map[string]any); ok {
		return fieldFromMap(childMap, rest)
	}
	field, err := xreflect.EmbedField(child, rest)
	if err != nil || !field.IsValid() {
		return Empty, false
	}
	return New("", field.Interface()), true
}

func splitPath(path string) (head, rest string) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:]
		}
	}
	return path, ""
}

// SetField writes newValue at the dotted path within v. Map values are copied
// (and so are the nested maps along the path); other values are written in
// place through xreflect. Used by instructions such as AddMember that assign
// into a struct field.
func (v Value) SetField(path string, newValue any) (Value, error) {
	if v.data == nil {
		return Empty, fmt.Errorf("cannot set field %q on empty value", path)
	}
	if asMap, ok := v.data.(map[string]any); ok {
		clone := make(map[string]any, len(asMap)+1)
		for k, val := range asMap {
			clone[k] = val
		}
		key, rest := splitPath(path)
		if rest != "" {
			child, err := New("", clone[key]).SetField(rest, newValue)
			if err != nil {
				return Empty, fmt.Errorf("set field %q: %w", path, err)
			}
			newValue = child.Raw()
		}
		clone[key] = newValue
		return New(v.typeName, clone), nil
	}
	if err := xreflect.SetEmbedField(v.data, path, newValue); err != nil {
		return Empty, fmt.Errorf("set field %q: %w", path, err)
	}
	return v, nil
}

// Assign copies src into the receiver's slot and returns the result. Per
// spec §4.1, assignment succeeds iff the destination is empty, the types are
// compatible, or the destination accepts dynamic re-typing (expressed here
// as the destination being a map, which always accepts re-typing).
func (dst Value) Assign(src Value) (Value, error) {
	if dst.IsEmpty() {
		return src, nil
	}
	if _, isMap := dst.data.(map[string]any); isMap {
		return src, nil
	}
	if dst.typeName != "" && src.typeName != "" && dst.typeName != src.typeName {
		return Empty, fmt.Errorf("type mismatch: destination is %q, source is %q", dst.typeName, src.typeName)
	}
	if dst.data != nil && src.data != nil && reflect.TypeOf(dst.data) != reflect.TypeOf(src.data) {
		return Empty, fmt.Errorf("type mismatch: destination holds %T, source holds %T", dst.data, src.data)
	}
	return New(dst.typeName, src.data), nil
}

// TypeDescriptor is the minimal, opaque-to-the-core shape the workspace needs
// from an externally defined variable type: a name and, optionally, a zero
// value factory. Per spec §6 the full type JSON is never interpreted by the
// core beyond this.
type TypeDescriptor struct {
	TypeName string          `json:"type"`
	Zero     json.RawMessage `json:"zero,omitempty"`
}

// ParseTypeDescriptor parses raw JSON (or YAML already converted to JSON)
// into a TypeDescriptor. The zero payload is kept as raw JSON; no Value is
// built from it here.
func ParseTypeDescriptor(raw []byte) (TypeDescriptor, error) {
	var td TypeDescriptor
	if err := json.Unmarshal(raw, &td); err != nil {
		return TypeDescriptor{}, fmt.Errorf("parse type descriptor: %w", err)
	}
	return td, nil
}

// ParseJSON decodes raw into a Value of the given type name. The structure of
// raw is opaque to the core beyond being valid JSON; external AnyType
// backends may interpret it further.
func ParseJSON(typeName string, raw string) (Value, error) {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return Empty, fmt.Errorf("parse value JSON: %w", err)
	}
	return New(typeName, data), nil
}
