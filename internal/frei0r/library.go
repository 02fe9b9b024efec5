// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package frei0r

// Handle is the opaque f0r_instance_t returned by construct. Zero is the
// null instance.
type Handle uintptr

// Library is the bound symbol table of one loaded plugin. Implementations
// translate typed values to whatever the plugin runtime needs; callers never
// see raw memory.
//
// Parameter indices are not validated by implementations. Callers must check
// them against PluginInfo().NumParams first.
type Library interface {
	// Init calls f0r_init. frei0r returns 1 on success and 0 on failure.
	Init() int
	// Deinit calls f0r_deinit.
	Deinit()
	// PluginInfo calls f0r_get_plugin_info.
	PluginInfo() PluginInfo
	// ParamInfo calls f0r_get_param_info for one index.
	ParamInfo(index int) ParamInfo
	// Construct calls f0r_construct. A zero Handle means construction failed.
	Construct(width, height int) Handle
	// Destruct calls f0r_destruct.
	Destruct(h Handle)
	// SetParam encodes v according to v.Kind and calls f0r_set_param_value.
	SetParam(h Handle, index int, v Value)
	// GetParam calls f0r_get_param_value and decodes the result as kind.
	GetParam(h Handle, index int, kind ParamKind) Value
	// HasUpdate reports whether f0r_update is exported.
	HasUpdate() bool
	// HasUpdate2 reports whether f0r_update2 is exported.
	HasUpdate2() bool
	// Update calls f0r_update. in is nil for sources.
	Update(h Handle, time float64, in, out []uint32)
	// Update2 calls f0r_update2. Unused inputs are nil.
	Update2(h Handle, time float64, in1, in2, in3, out []uint32)
	// Close unloads the library. It does not call Deinit.
	Close() error
}

// Faulter is implemented by libraries whose plugin code runs behind a
// boundary that can fail on its own, such as a child process. Fault returns
// the first failure seen, after which every other call is a no-op.
type Faulter interface {
	Fault() error
}
