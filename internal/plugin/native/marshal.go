// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package native

import (
	"unsafe"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// rawPluginInfo mirrors f0r_plugin_info_t.
type rawPluginInfo struct {
	name          *byte
	author        *byte
	pluginType    int32
	colorModel    int32
	frei0rVersion int32
	majorVersion  int32
	minorVersion  int32
	numParams     int32
	explanation   *byte
}

// rawParamInfo mirrors f0r_param_info_t.
type rawParamInfo struct {
	name        *byte
	paramType   int32
	explanation *byte
}

// rawColor mirrors f0r_param_color_t.
type rawColor struct {
	r, g, b float32
}

// rawPosition mirrors f0r_param_position_t.
type rawPosition struct {
	x, y float64
}

// blob is the memory behind an f0r_param_t. Three 8-byte words hold the
// largest payload (a position, or a color padded out).
type blob struct {
	mem [3]uint64
	// buf keeps a string argument reachable while the plugin reads it.
	buf []byte
}

func (b *blob) ptr() unsafe.Pointer { return unsafe.Pointer(&b.mem[0]) }

func (b *blob) double() *float64 { return (*float64)(b.ptr()) }

func (b *blob) color() *rawColor { return (*rawColor)(b.ptr()) }

func (b *blob) position() *rawPosition { return (*rawPosition)(b.ptr()) }

// encode lays v out the way set_param_value expects for v.Kind.
//
// Bool travels as a double (1 or 0). Strings travel as a char** whose
// buffer is only guaranteed to live until the set call returns.
func encode(v frei0r.Value) *blob {
	b := &blob{}
	switch v.Kind {
	case frei0r.ParamBool:
		if v.Bool {
			*b.double() = 1
		} else {
			*b.double() = 0
		}
	case frei0r.ParamDouble:
		*b.double() = v.Double
	case frei0r.ParamColor:
		*b.color() = rawColor{r: v.Color.R, g: v.Color.G, b: v.Color.B}
	case frei0r.ParamPosition:
		*b.position() = rawPosition{x: v.Position.X, y: v.Position.Y}
	case frei0r.ParamString:
		b.buf = append([]byte(v.Text), 0)
		b.mem[0] = uint64(uintptr(unsafe.Pointer(&b.buf[0])))
	}
	return b
}

// decode reads a blob filled by get_param_value as kind.
func decode(kind frei0r.ParamKind, b *blob) frei0r.Value {
	switch kind {
	case frei0r.ParamBool:
		return frei0r.BoolValue(*b.double() > 0.5)
	case frei0r.ParamDouble:
		return frei0r.DoubleValue(*b.double())
	case frei0r.ParamColor:
		c := b.color()
		return frei0r.ColorValue(frei0r.Color{R: c.r, G: c.g, B: c.b})
	case frei0r.ParamPosition:
		p := b.position()
		return frei0r.PositionValue(frei0r.Position{X: p.x, Y: p.y})
	case frei0r.ParamString:
		return frei0r.StringValue(goStringAt(uintptr(b.mem[0])))
	default:
		return frei0r.Value{Kind: kind}
	}
}

// goString copies a NUL terminated C string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// goStringAt copies a C string the plugin handed back by address. The
// memory belongs to the plugin instance.
func goStringAt(addr uintptr) string {
	if addr == 0 {
		return ""
	}
	return goString((*byte)(unsafe.Pointer(addr))) //nolint:govet // plugin-owned C memory
}

func (r *rawPluginInfo) decode() frei0r.PluginInfo {
	return frei0r.PluginInfo{
		Name:          goString(r.name),
		Author:        goString(r.author),
		Kind:          frei0r.PluginKind(r.pluginType),
		ColorModel:    frei0r.ColorModel(r.colorModel),
		Frei0rVersion: int(r.frei0rVersion),
		MajorVersion:  int(r.majorVersion),
		MinorVersion:  int(r.minorVersion),
		NumParams:     int(r.numParams),
		Explanation:   goString(r.explanation),
	}
}

func (r *rawParamInfo) decode() frei0r.ParamInfo {
	return frei0r.ParamInfo{
		Name:        goString(r.name),
		Kind:        frei0r.ParamKind(r.paramType),
		Explanation: goString(r.explanation),
	}
}

// framePtr returns the address of a frame buffer, or nil for an absent one.
func framePtr(frame []uint32) unsafe.Pointer {
	if len(frame) == 0 {
		return nil
	}
	return unsafe.Pointer(&frame[0])
}
