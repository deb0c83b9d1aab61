// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// Tagged-Variant Value Model
// =============================================================================

// ValueKind is the explicit type tag for a traced variable value.
//
// Snapshots arrive from the execution collaborator as untyped JSON. Each
// value is classified exactly once at the boundary (SnapshotFromRaw);
// downstream diffing, concept extraction, and rendering switch on the tag
// instead of re-inspecting runtime types.
type ValueKind int

const (
	// KindNull is a null/None value.
	KindNull ValueKind = iota
	// KindBool is a boolean.
	KindBool
	// KindNumber is any numeric value; integers and floats share this
	// kind so that equivalent representations compare equal.
	KindNumber
	// KindText is a text string.
	KindText
	// KindList is an ordered collection (list, tuple, array).
	KindList
	// KindMap is a keyed collection (dict, object).
	KindMap
	// KindOpaque is a composite record the tracer serialized as an
	// opaque string (class instances, functions, file handles).
	KindOpaque
)

// String returns the snake_case name of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindList:
		return "ordered_collection"
	case KindMap:
		return "keyed_collection"
	case KindOpaque:
		return "opaque_record"
	default:
		return "unknown"
	}
}

// Value is one traced variable value in canonical form.
//
// Exactly one payload field is meaningful, selected by Kind. The zero
// Value is KindNull.
type Value struct {
	Kind ValueKind

	Bool   bool
	Number float64
	Text   string
	List   []Value
	Map    map[string]Value
	Opaque string
}

// Snapshot is a canonicalized variable-name to value mapping for one step.
type Snapshot map[string]Value

// FromRaw classifies a decoded JSON value into its canonical Value form.
//
// Ordered collections are converted element-by-element, so a value that
// was serialized once as a tuple and once as a list lands in the same
// canonical form. Numbers are widened to float64 for the same reason.
// Anything unrecognized becomes an opaque record via fmt.
func FromRaw(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case float64:
		return Value{Kind: KindNumber, Number: t}
	case float32:
		return Value{Kind: KindNumber, Number: float64(t)}
	case int:
		return Value{Kind: KindNumber, Number: float64(t)}
	case int32:
		return Value{Kind: KindNumber, Number: float64(t)}
	case int64:
		return Value{Kind: KindNumber, Number: float64(t)}
	case string:
		return Value{Kind: KindText, Text: t}
	case []any:
		list := make([]Value, len(t))
		for i, elem := range t {
			list[i] = FromRaw(elem)
		}
		return Value{Kind: KindList, List: list}
	case map[string]any:
		m := make(map[string]Value, len(t))
		for key, elem := range t {
			m[key] = FromRaw(elem)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return Value{Kind: KindOpaque, Opaque: fmt.Sprintf("%v", v)}
	}
}

// SnapshotFromRaw canonicalizes a raw variable snapshot. A nil input
// yields an empty snapshot, never nil.
func SnapshotFromRaw(vars map[string]any) Snapshot {
	snap := make(Snapshot, len(vars))
	for name, v := range vars {
		snap[name] = FromRaw(v)
	}
	return snap
}

// Equal reports structural equality between two canonical values.
// Lists compare element-by-element, maps key-by-key, numbers as float64.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindNumber:
		return v.Number == o.Number
	case KindText:
		return v.Text == o.Text
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for key, elem := range v.Map {
			other, ok := o.Map[key]
			if !ok || !elem.Equal(other) {
				return false
			}
		}
		return true
	case KindOpaque:
		return v.Opaque == o.Opaque
	default:
		return false
	}
}

// Equal reports whether two snapshots bind the same names to equal values.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s) != len(o) {
		return false
	}
	for name, v := range s {
		other, ok := o[name]
		if !ok || !v.Equal(other) {
			return false
		}
	}
	return true
}

// Len returns the element count for collections and 0 otherwise.
func (v Value) Len() int {
	switch v.Kind {
	case KindList:
		return len(v.List)
	case KindMap:
		return len(v.Map)
	default:
		return 0
	}
}

// IsNumeric reports whether the value is a number.
func (v Value) IsNumeric() bool { return v.Kind == KindNumber }

// String renders a compact display form used inside explanations.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "None"
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindNumber:
		if v.Number == float64(int64(v.Number)) {
			return strconv.FormatInt(int64(v.Number), 10)
		}
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindText:
		return fmt.Sprintf("%q", v.Text)
	case KindList:
		parts := make([]string, len(v.List))
		for i, elem := range v.List {
			parts[i] = elem.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for key := range v.Map {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = fmt.Sprintf("%s: %s", key, v.Map[key].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindOpaque:
		return v.Opaque
	default:
		return "?"
	}
}

// TypeLabel returns the plain-language type name used in beginner
// explanations, e.g. "a number" or "a list".
func (v Value) TypeLabel() string {
	switch v.Kind {
	case KindNull:
		return "an empty value"
	case KindBool:
		return "a true/false value"
	case KindNumber:
		return "a number"
	case KindText:
		return "a piece of text"
	case KindList:
		return "a list"
	case KindMap:
		return "a dictionary"
	default:
		return "an object"
	}
}
