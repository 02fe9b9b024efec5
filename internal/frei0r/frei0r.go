// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package frei0r models the frei0r 1.x plugin ABI: plugin kinds, color models,
// parameter kinds and the typed values exchanged with a loaded plugin library.
//
// The raw C memory layout lives in internal/plugin/native. Everything in this
// package is plain Go so that the rest of the host stays typed.
package frei0r

import "fmt"

// PluginKind is the plugin_type field of f0r_plugin_info.
type PluginKind int32

// Plugin kinds defined by frei0r.h.
const (
	KindFilter PluginKind = 0
	KindSource PluginKind = 1
	KindMixer2 PluginKind = 2
	KindMixer3 PluginKind = 3
)

var pluginKindNames = [...]string{"filter", "source", "mixer2", "mixer3"}

// String returns the lower-case kind name.
func (k PluginKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int32(k))
	}
	return pluginKindNames[k]
}

// Valid reports whether k is one of the four kinds known to the ABI.
func (k PluginKind) Valid() bool {
	return k >= KindFilter && k <= KindMixer3
}

// Inputs returns the number of input frames the kind consumes per update.
func (k PluginKind) Inputs() int {
	switch k {
	case KindSource:
		return 0
	case KindFilter:
		return 1
	case KindMixer2:
		return 2
	case KindMixer3:
		return 3
	default:
		return 0
	}
}

// ParsePluginKind maps a kind name back to its value.
func ParsePluginKind(s string) (PluginKind, error) {
	for i, name := range pluginKindNames {
		if name == s {
			return PluginKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown plugin kind %q", s)
}

// ColorModel is the color_model field of f0r_plugin_info.
type ColorModel int32

// Color models defined by frei0r.h.
const (
	ColorModelBGRA8888 ColorModel = 0
	ColorModelRGBA8888 ColorModel = 1
	ColorModelPacked32 ColorModel = 2
)

var colorModelNames = [...]string{"bgra8888", "rgba8888", "packed32"}

func (c ColorModel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("color_model(%d)", int32(c))
	}
	return colorModelNames[c]
}

// Valid reports whether c is a color model known to the ABI.
func (c ColorModel) Valid() bool {
	return c >= ColorModelBGRA8888 && c <= ColorModelPacked32
}

// ParseColorModel maps a color model name back to its value.
func ParseColorModel(s string) (ColorModel, error) {
	for i, name := range colorModelNames {
		if name == s {
			return ColorModel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown color model %q", s)
}

// PluginInfo is the static metadata returned by f0r_get_plugin_info.
type PluginInfo struct {
	Name          string
	Author        string
	Kind          PluginKind
	ColorModel    ColorModel
	Frei0rVersion int
	MajorVersion  int
	MinorVersion  int
	NumParams     int
	Explanation   string
}

// Version renders the ABI version triple as "frei0r.major.minor".
func (i PluginInfo) Version() string {
	return fmt.Sprintf("%d.%d.%d", i.Frei0rVersion, i.MajorVersion, i.MinorVersion)
}

// ParamInfo is the per-index metadata returned by f0r_get_param_info.
type ParamInfo struct {
	Name        string
	Kind        ParamKind
	Explanation string
}
