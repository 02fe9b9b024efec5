// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// registerHostFunctions installs the frei0r global table.
func (l *Library) registerHostFunctions() {
	mod := l.L.SetFuncs(l.L.NewTable(), map[string]lua.LGFunction{
		"width":  l.luaWidth,
		"height": l.luaHeight,
		"param":  l.luaParam,
		"input":  l.luaInput,
		"pixel":  l.luaPixel,
		"fill":   l.luaFill,
		"copy":   l.luaCopy,
	})
	l.L.SetGlobal("frei0r", mod)
}

// frame returns the active call frame or raises a script error.
func (l *Library) frame(L *lua.LState, fn string) *frame {
	if l.cur == nil {
		L.RaiseError("frei0r.%s called outside construct or update", fn)
		return nil
	}
	return l.cur
}

// output returns the active frame if it can be written to.
func (l *Library) output(L *lua.LState, fn string) *frame {
	f := l.frame(L, fn)
	if f.out == nil {
		L.RaiseError("frei0r.%s called outside update", fn)
		return nil
	}
	return f
}

func (l *Library) luaWidth(L *lua.LState) int {
	L.Push(lua.LNumber(l.frame(L, "width").inst.width))
	return 1
}

func (l *Library) luaHeight(L *lua.LState) int {
	L.Push(lua.LNumber(l.frame(L, "height").inst.height))
	return 1
}

// luaParam reads a parameter by name or by its 1-based position in
// plugin.params.
func (l *Library) luaParam(L *lua.LState) int {
	f := l.frame(L, "param")
	index := -1
	switch ref := L.Get(1).(type) {
	case lua.LString:
		for i, p := range l.params {
			if p.Name == string(ref) {
				index = i
				break
			}
		}
	case lua.LNumber:
		index = int(ref) - 1
	}
	if index < 0 || index >= len(f.inst.values) {
		L.ArgError(1, "unknown parameter "+L.Get(1).String())
		return 0
	}
	L.Push(fromValue(L, f.inst.values[index]))
	return 1
}

// coords validates a pixel coordinate pair at stack positions n and n+1.
func coords(L *lua.LState, inst *instance, n int) int {
	x, y := L.CheckInt(n), L.CheckInt(n+1)
	if x < 0 || x >= inst.width || y < 0 || y >= inst.height {
		L.RaiseError("pixel (%d, %d) outside %dx%d frame", x, y, inst.width, inst.height)
		return 0
	}
	return y*inst.width + x
}

func channel(L *lua.LState, n int, fallback float64) uint8 {
	v := float64(L.OptNumber(n, lua.LNumber(fallback)))
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

func pixelArgs(L *lua.LState, n int) frei0r.RGBA {
	return frei0r.RGBA{
		R: channel(L, n, 0),
		G: channel(L, n+1, 0),
		B: channel(L, n+2, 0),
		A: channel(L, n+3, 255),
	}
}

// luaInput returns r, g, b, a of pixel (x, y) in input n, counted from 1.
func (l *Library) luaInput(L *lua.LState) int {
	f := l.frame(L, "input")
	n := L.CheckInt(1)
	if n < 1 || n > len(f.inputs) || f.inputs[n-1] == nil {
		L.ArgError(1, "no such input")
		return 0
	}
	i := coords(L, f.inst, 2)
	in := f.inputs[n-1]
	if i >= len(in) {
		L.RaiseError("input %d is shorter than the frame", n)
		return 0
	}
	p := l.info.ColorModel.Unpack(in[i])
	L.Push(lua.LNumber(p.R))
	L.Push(lua.LNumber(p.G))
	L.Push(lua.LNumber(p.B))
	L.Push(lua.LNumber(p.A))
	return 4
}

// luaPixel writes pixel (x, y) of the output. Alpha defaults to opaque.
func (l *Library) luaPixel(L *lua.LState) int {
	f := l.output(L, "pixel")
	i := coords(L, f.inst, 1)
	if i < len(f.out) {
		f.out[i] = l.info.ColorModel.Pack(pixelArgs(L, 3))
	}
	return 0
}

// luaFill sets every output pixel to one color.
func (l *Library) luaFill(L *lua.LState) int {
	f := l.output(L, "fill")
	v := l.info.ColorModel.Pack(pixelArgs(L, 1))
	for i := range f.out {
		f.out[i] = v
	}
	return 0
}

// luaCopy copies input n to the output.
func (l *Library) luaCopy(L *lua.LState) int {
	f := l.output(L, "copy")
	n := L.CheckInt(1)
	if n < 1 || n > len(f.inputs) || f.inputs[n-1] == nil {
		L.ArgError(1, "no such input")
		return 0
	}
	copy(f.out, f.inputs[n-1])
	return 0
}
