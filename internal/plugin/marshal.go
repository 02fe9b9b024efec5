// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package plugin

import (
	"fmt"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// Channel selects one component of a color parameter.
type Channel int

// Color channels.
const (
	ChannelR Channel = iota
	ChannelG
	ChannelB
)

// Valid reports whether c names one of r, g or b.
func (c Channel) Valid() bool { return c >= ChannelR && c <= ChannelB }

func (c Channel) String() string {
	switch c {
	case ChannelR:
		return "r"
	case ChannelG:
		return "g"
	case ChannelB:
		return "b"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Axis selects one component of a position parameter.
type Axis int

// Position axes.
const (
	AxisX Axis = iota
	AxisY
)

// Valid reports whether a names x or y.
func (a Axis) Valid() bool { return a == AxisX || a == AxisY }

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Marshaller reads and writes the typed parameters of one instance.
//
// It does no bounds checking: index must already be known to be below the
// plugin's parameter count.
type Marshaller struct {
	lib    frei0r.Library
	handle frei0r.Handle
}

// NewMarshaller binds a marshaller to a live instance handle.
func NewMarshaller(lib frei0r.Library, handle frei0r.Handle) Marshaller {
	return Marshaller{lib: lib, handle: handle}
}

// SetBool writes a bool parameter.
func (m Marshaller) SetBool(index int, v bool) {
	m.lib.SetParam(m.handle, index, frei0r.BoolValue(v))
}

// Bool reads a bool parameter.
func (m Marshaller) Bool(index int) bool {
	return m.lib.GetParam(m.handle, index, frei0r.ParamBool).Bool
}

// SetDouble writes a double parameter. The value is not clamped.
func (m Marshaller) SetDouble(index int, v float64) {
	m.lib.SetParam(m.handle, index, frei0r.DoubleValue(v))
}

// Double reads a double parameter.
func (m Marshaller) Double(index int) float64 {
	return m.lib.GetParam(m.handle, index, frei0r.ParamDouble).Double
}

// SetColor writes all three channels of a color parameter.
func (m Marshaller) SetColor(index int, c frei0r.Color) {
	m.lib.SetParam(m.handle, index, frei0r.ColorValue(c))
}

// Color reads a color parameter.
func (m Marshaller) Color(index int) frei0r.Color {
	return m.lib.GetParam(m.handle, index, frei0r.ParamColor).Color
}

// SetColorChannel replaces one channel, keeping the other two as the
// plugin currently holds them.
func (m Marshaller) SetColorChannel(index int, ch Channel, v float32) {
	c := m.Color(index)
	switch ch {
	case ChannelR:
		c.R = v
	case ChannelG:
		c.G = v
	case ChannelB:
		c.B = v
	}
	m.SetColor(index, c)
}

// SetPosition writes both coordinates of a position parameter.
func (m Marshaller) SetPosition(index int, p frei0r.Position) {
	m.lib.SetParam(m.handle, index, frei0r.PositionValue(p))
}

// Position reads a position parameter.
func (m Marshaller) Position(index int) frei0r.Position {
	return m.lib.GetParam(m.handle, index, frei0r.ParamPosition).Position
}

// SetPositionAxis replaces one coordinate, keeping the other.
func (m Marshaller) SetPositionAxis(index int, axis Axis, v float64) {
	p := m.Position(index)
	switch axis {
	case AxisX:
		p.X = v
	case AxisY:
		p.Y = v
	}
	m.SetPosition(index, p)
}

// SetString writes a string parameter. The plugin must copy it before the
// call returns.
func (m Marshaller) SetString(index int, v string) {
	m.lib.SetParam(m.handle, index, frei0r.StringValue(v))
}

// String reads a string parameter, copying it out of plugin memory.
func (m Marshaller) String(index int) string {
	return m.lib.GetParam(m.handle, index, frei0r.ParamString).Text
}

// Get reads any parameter as a tagged value.
func (m Marshaller) Get(index int, kind frei0r.ParamKind) frei0r.Value {
	return m.lib.GetParam(m.handle, index, kind)
}
