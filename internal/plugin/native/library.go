// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

//go:build darwin || freebsd || linux

package native

import (
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// Compile-time interface check.
var _ frei0r.Library = (*Library)(nil)

// dlsymResolver resolves symbols from a dlopen handle.
type dlsymResolver uintptr

func (h dlsymResolver) Lookup(name string) uintptr {
	addr, err := purego.Dlsym(uintptr(h), name)
	if err != nil {
		return 0
	}
	return addr
}

// Library is a frei0r plugin loaded from a shared object.
type Library struct {
	path   string
	handle uintptr
	syms   symbolTable

	closeOnce sync.Once
	closeErr  error

	init          func() int32
	deinit        func()
	getPluginInfo func(info *rawPluginInfo)
	getParamInfo  func(info *rawParamInfo, index int32)
	construct     func(width, height uint32) uintptr
	destruct      func(instance uintptr)
	setParamValue func(instance uintptr, param unsafe.Pointer, index int32)
	getParamValue func(instance uintptr, param unsafe.Pointer, index int32)
	update        func(instance uintptr, time float64, in, out unsafe.Pointer)
	update2       func(instance uintptr, time float64, in1, in2, in3, out unsafe.Pointer)
}

// Open dlopens path and binds its frei0r symbol table. A library with an
// incomplete table is unloaded before the SymbolError is returned. Open never
// calls f0r_init.
func Open(path string) (*Library, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, oops.Code(frei0r.CodeLoad).With("path", path).Wrap(err)
	}

	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, oops.Code(frei0r.CodeLoad).With("path", path).Hint("missing dependency or not a shared object").Wrap(err)
	}

	syms, err := bind(dlsymResolver(handle))
	if err != nil {
		if closeErr := purego.Dlclose(handle); closeErr != nil {
			return nil, oops.Code(frei0r.CodeSymbol).With("path", path).With("dlclose", closeErr.Error()).Wrap(err)
		}
		return nil, oops.Code(frei0r.CodeSymbol).With("path", path).Wrap(err)
	}

	lib := &Library{path: path, handle: handle, syms: syms}
	lib.register()
	return lib, nil
}

func (l *Library) register() {
	purego.RegisterFunc(&l.init, l.syms.init)
	purego.RegisterFunc(&l.deinit, l.syms.deinit)
	purego.RegisterFunc(&l.getPluginInfo, l.syms.getPluginInfo)
	purego.RegisterFunc(&l.getParamInfo, l.syms.getParamInfo)
	purego.RegisterFunc(&l.construct, l.syms.construct)
	purego.RegisterFunc(&l.destruct, l.syms.destruct)
	purego.RegisterFunc(&l.setParamValue, l.syms.setParamValue)
	purego.RegisterFunc(&l.getParamValue, l.syms.getParamValue)
	if l.syms.update != 0 {
		purego.RegisterFunc(&l.update, l.syms.update)
	}
	if l.syms.update2 != 0 {
		purego.RegisterFunc(&l.update2, l.syms.update2)
	}
}

// Path returns the shared object path.
func (l *Library) Path() string { return l.path }

// Init implements frei0r.Library.
func (l *Library) Init() int { return int(l.init()) }

// Deinit implements frei0r.Library.
func (l *Library) Deinit() { l.deinit() }

// PluginInfo implements frei0r.Library.
func (l *Library) PluginInfo() frei0r.PluginInfo {
	var raw rawPluginInfo
	l.getPluginInfo(&raw)
	return raw.decode()
}

// ParamInfo implements frei0r.Library.
func (l *Library) ParamInfo(index int) frei0r.ParamInfo {
	var raw rawParamInfo
	l.getParamInfo(&raw, int32(index))
	return raw.decode()
}

// Construct implements frei0r.Library.
func (l *Library) Construct(width, height int) frei0r.Handle {
	return frei0r.Handle(l.construct(uint32(width), uint32(height)))
}

// Destruct implements frei0r.Library.
func (l *Library) Destruct(h frei0r.Handle) { l.destruct(uintptr(h)) }

// SetParam implements frei0r.Library.
func (l *Library) SetParam(h frei0r.Handle, index int, v frei0r.Value) {
	b := encode(v)
	l.setParamValue(uintptr(h), b.ptr(), int32(index))
	runtime.KeepAlive(b)
}

// GetParam implements frei0r.Library.
func (l *Library) GetParam(h frei0r.Handle, index int, kind frei0r.ParamKind) frei0r.Value {
	b := &blob{}
	l.getParamValue(uintptr(h), b.ptr(), int32(index))
	return decode(kind, b)
}

// HasUpdate implements frei0r.Library.
func (l *Library) HasUpdate() bool { return l.syms.update != 0 }

// HasUpdate2 implements frei0r.Library.
func (l *Library) HasUpdate2() bool { return l.syms.update2 != 0 }

// Update implements frei0r.Library.
func (l *Library) Update(h frei0r.Handle, time float64, in, out []uint32) {
	l.update(uintptr(h), time, framePtr(in), framePtr(out))
	runtime.KeepAlive(in)
	runtime.KeepAlive(out)
}

// Update2 implements frei0r.Library.
func (l *Library) Update2(h frei0r.Handle, time float64, in1, in2, in3, out []uint32) {
	l.update2(uintptr(h), time, framePtr(in1), framePtr(in2), framePtr(in3), framePtr(out))
	runtime.KeepAlive(in1)
	runtime.KeepAlive(in2)
	runtime.KeepAlive(in3)
	runtime.KeepAlive(out)
}

// Close implements frei0r.Library. It is safe to call more than once.
func (l *Library) Close() error {
	l.closeOnce.Do(func() {
		if err := purego.Dlclose(l.handle); err != nil {
			l.closeErr = oops.With("path", l.path).Wrap(err)
		}
	})
	return l.closeErr
}
