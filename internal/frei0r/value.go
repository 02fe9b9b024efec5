// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package frei0r

import "fmt"

// ParamKind is the type field of f0r_param_info.
type ParamKind int32

// Parameter kinds defined by frei0r.h.
const (
	ParamBool     ParamKind = 0
	ParamDouble   ParamKind = 1
	ParamColor    ParamKind = 2
	ParamPosition ParamKind = 3
	ParamString   ParamKind = 4
)

var paramKindNames = [...]string{"bool", "double", "color", "position", "string"}

func (k ParamKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("param(%d)", int32(k))
	}
	return paramKindNames[k]
}

// Valid reports whether k is a parameter kind known to the ABI.
func (k ParamKind) Valid() bool {
	return k >= ParamBool && k <= ParamString
}

// ParseParamKind maps a parameter kind name back to its value.
func ParseParamKind(s string) (ParamKind, error) {
	for i, name := range paramKindNames {
		if name == s {
			return ParamKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown parameter kind %q", s)
}

// Color mirrors f0r_param_color: three single precision channels in [0,1].
type Color struct {
	R, G, B float32
}

// Position mirrors f0r_param_position.
type Position struct {
	X, Y float64
}

// Value is a parameter value tagged with its kind. Only the field matching
// Kind is meaningful.
type Value struct {
	Kind     ParamKind
	Bool     bool
	Double   float64
	Color    Color
	Position Position
	Text     string
}

// BoolValue wraps a bool parameter value.
func BoolValue(v bool) Value { return Value{Kind: ParamBool, Bool: v} }

// DoubleValue wraps a double parameter value.
func DoubleValue(v float64) Value { return Value{Kind: ParamDouble, Double: v} }

// ColorValue wraps a color parameter value.
func ColorValue(c Color) Value { return Value{Kind: ParamColor, Color: c} }

// PositionValue wraps a position parameter value.
func PositionValue(p Position) Value { return Value{Kind: ParamPosition, Position: p} }

// StringValue wraps a string parameter value.
func StringValue(s string) Value { return Value{Kind: ParamString, Text: s} }

// Any returns the payload as an untyped Go value, for logging and schema output.
func (v Value) Any() any {
	switch v.Kind {
	case ParamBool:
		return v.Bool
	case ParamDouble:
		return v.Double
	case ParamColor:
		return map[string]float32{"r": v.Color.R, "g": v.Color.G, "b": v.Color.B}
	case ParamPosition:
		return map[string]float64{"x": v.Position.X, "y": v.Position.Y}
	case ParamString:
		return v.Text
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ParamBool:
		return fmt.Sprintf("%t", v.Bool)
	case ParamDouble:
		return fmt.Sprintf("%g", v.Double)
	case ParamColor:
		return fmt.Sprintf("rgb(%g, %g, %g)", v.Color.R, v.Color.G, v.Color.B)
	case ParamPosition:
		return fmt.Sprintf("(%g, %g)", v.Position.X, v.Position.Y)
	case ParamString:
		return fmt.Sprintf("%q", v.Text)
	default:
		return "<invalid>"
	}
}
