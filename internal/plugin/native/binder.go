// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package native loads frei0r plugins from shared objects with purego and
// calls their C entry points without cgo.
package native

import (
	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// Exported symbol names of the frei0r 1.x ABI.
const (
	symInit          = "f0r_init"
	symDeinit        = "f0r_deinit"
	symGetPluginInfo = "f0r_get_plugin_info"
	symGetParamInfo  = "f0r_get_param_info"
	symConstruct     = "f0r_construct"
	symDestruct      = "f0r_destruct"
	symSetParamValue = "f0r_set_param_value"
	symGetParamValue = "f0r_get_param_value"
	symUpdate        = "f0r_update"
	symUpdate2       = "f0r_update2"
)

// requiredSymbols must all resolve; at least one of update/update2 must too.
var requiredSymbols = []string{
	symInit,
	symDeinit,
	symGetPluginInfo,
	symGetParamInfo,
	symConstruct,
	symDestruct,
	symSetParamValue,
	symGetParamValue,
}

// resolver looks up an exported symbol, returning 0 when it is absent.
type resolver interface {
	Lookup(name string) uintptr
}

// symbolTable holds the resolved entry point addresses of one library.
type symbolTable struct {
	init          uintptr
	deinit        uintptr
	getPluginInfo uintptr
	getParamInfo  uintptr
	construct     uintptr
	destruct      uintptr
	setParamValue uintptr
	getParamValue uintptr
	update        uintptr
	update2       uintptr
}

// bind resolves every entry point. It only performs lookups; f0r_init is
// never called here.
func bind(r resolver) (symbolTable, error) {
	addrs := make(map[string]uintptr, len(requiredSymbols)+2)
	var missing []string
	for _, name := range requiredSymbols {
		addr := r.Lookup(name)
		if addr == 0 {
			missing = append(missing, name)
		}
		addrs[name] = addr
	}
	addrs[symUpdate] = r.Lookup(symUpdate)
	addrs[symUpdate2] = r.Lookup(symUpdate2)
	if addrs[symUpdate] == 0 && addrs[symUpdate2] == 0 {
		missing = append(missing, symUpdate+"|"+symUpdate2)
	}

	if len(missing) > 0 {
		return symbolTable{}, oops.Code(frei0r.CodeSymbol).
			With("missing", missing).
			Errorf("some symbols are missing in frei0r plugin: %v", missing)
	}

	return symbolTable{
		init:          addrs[symInit],
		deinit:        addrs[symDeinit],
		getPluginInfo: addrs[symGetPluginInfo],
		getParamInfo:  addrs[symGetParamInfo],
		construct:     addrs[symConstruct],
		destruct:      addrs[symDestruct],
		setParamValue: addrs[symSetParamValue],
		getParamValue: addrs[symGetParamValue],
		update:        addrs[symUpdate],
		update2:       addrs[symUpdate2],
	}, nil
}
