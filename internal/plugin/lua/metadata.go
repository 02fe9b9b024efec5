// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package lua

import (
	"fmt"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// readPluginTable fills info, params and defaults from the global plugin
// table.
func (l *Library) readPluginTable() error {
	errb := oops.In("lua").Code(frei0r.CodeInvalidMetadata).With("path", l.path)

	tbl, ok := l.L.GetGlobal("plugin").(*lua.LTable)
	if !ok {
		return errb.Hint("define a global plugin table").Errorf("script has no plugin table")
	}

	name := stringField(tbl, "name", "")
	if name == "" {
		return errb.Errorf("plugin.name is required")
	}
	kind, err := frei0r.ParsePluginKind(stringField(tbl, "kind", frei0r.KindFilter.String()))
	if err != nil {
		return errb.Wrap(err)
	}
	model, err := frei0r.ParseColorModel(stringField(tbl, "color_model", frei0r.ColorModelRGBA8888.String()))
	if err != nil {
		return errb.Wrap(err)
	}

	var params []frei0r.ParamInfo
	var defaults []frei0r.Value
	if raw := tbl.RawGetString("params"); raw != lua.LNil {
		list, ok := raw.(*lua.LTable)
		if !ok {
			return errb.Errorf("plugin.params must be a list")
		}
		for i := 1; i <= list.Len(); i++ {
			entry, ok := list.RawGetInt(i).(*lua.LTable)
			if !ok {
				return errb.With("param", i).Errorf("plugin.params[%d] must be a table", i)
			}
			p, def, err := readParam(entry)
			if err != nil {
				return errb.With("param", i).Wrapf(err, "plugin.params[%d]", i)
			}
			params = append(params, p)
			defaults = append(defaults, def)
		}
	}

	l.info = frei0r.PluginInfo{
		Name:          name,
		Author:        stringField(tbl, "author", ""),
		Kind:          kind,
		ColorModel:    model,
		Frei0rVersion: 1,
		MajorVersion:  intField(tbl, "major", 0),
		MinorVersion:  intField(tbl, "minor", 1),
		NumParams:     len(params),
		Explanation:   stringField(tbl, "explanation", ""),
	}
	l.params = params
	l.defaults = defaults
	return nil
}

func readParam(tbl *lua.LTable) (frei0r.ParamInfo, frei0r.Value, error) {
	name := stringField(tbl, "name", "")
	if name == "" {
		return frei0r.ParamInfo{}, frei0r.Value{}, fmt.Errorf("name is required")
	}
	kind, err := frei0r.ParseParamKind(stringField(tbl, "type", ""))
	if err != nil {
		return frei0r.ParamInfo{}, frei0r.Value{}, err
	}
	def := frei0r.Value{Kind: kind}
	if raw := tbl.RawGetString("default"); raw != lua.LNil {
		if def, err = toValue(kind, raw); err != nil {
			return frei0r.ParamInfo{}, frei0r.Value{}, fmt.Errorf("default: %w", err)
		}
	}
	info := frei0r.ParamInfo{
		Name:        name,
		Kind:        kind,
		Explanation: stringField(tbl, "explanation", ""),
	}
	return info, def, nil
}

func stringField(tbl *lua.LTable, key, fallback string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return fallback
}

func intField(tbl *lua.LTable, key string, fallback int) int {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return fallback
}

// component reads a table field by name or, failing that, by position.
func component(tbl *lua.LTable, key string, pos int) (float64, bool) {
	v := tbl.RawGetString(key)
	if v == lua.LNil {
		v = tbl.RawGetInt(pos)
	}
	n, ok := v.(lua.LNumber)
	return float64(n), ok
}

// toValue converts a script value to a parameter value of kind.
func toValue(kind frei0r.ParamKind, v lua.LValue) (frei0r.Value, error) {
	switch kind {
	case frei0r.ParamBool:
		if b, ok := v.(lua.LBool); ok {
			return frei0r.BoolValue(bool(b)), nil
		}
		if n, ok := v.(lua.LNumber); ok {
			return frei0r.BoolValue(n > 0.5), nil
		}
	case frei0r.ParamDouble:
		if n, ok := v.(lua.LNumber); ok {
			return frei0r.DoubleValue(float64(n)), nil
		}
	case frei0r.ParamColor:
		if tbl, ok := v.(*lua.LTable); ok {
			r, okR := component(tbl, "r", 1)
			g, okG := component(tbl, "g", 2)
			b, okB := component(tbl, "b", 3)
			if okR && okG && okB {
				return frei0r.ColorValue(frei0r.Color{R: float32(r), G: float32(g), B: float32(b)}), nil
			}
		}
	case frei0r.ParamPosition:
		if tbl, ok := v.(*lua.LTable); ok {
			x, okX := component(tbl, "x", 1)
			y, okY := component(tbl, "y", 2)
			if okX && okY {
				return frei0r.PositionValue(frei0r.Position{X: x, Y: y}), nil
			}
		}
	case frei0r.ParamString:
		if s, ok := v.(lua.LString); ok {
			return frei0r.StringValue(string(s)), nil
		}
	}
	return frei0r.Value{}, fmt.Errorf("cannot use %s value as %s", v.Type(), kind)
}

// fromValue converts a parameter value for the script.
func fromValue(L *lua.LState, v frei0r.Value) lua.LValue {
	switch v.Kind {
	case frei0r.ParamBool:
		return lua.LBool(v.Bool)
	case frei0r.ParamDouble:
		return lua.LNumber(v.Double)
	case frei0r.ParamColor:
		tbl := L.CreateTable(0, 3)
		tbl.RawSetString("r", lua.LNumber(v.Color.R))
		tbl.RawSetString("g", lua.LNumber(v.Color.G))
		tbl.RawSetString("b", lua.LNumber(v.Color.B))
		return tbl
	case frei0r.ParamPosition:
		tbl := L.CreateTable(0, 2)
		tbl.RawSetString("x", lua.LNumber(v.Position.X))
		tbl.RawSetString("y", lua.LNumber(v.Position.Y))
		return tbl
	case frei0r.ParamString:
		return lua.LString(v.Text)
	default:
		return lua.LNil
	}
}
