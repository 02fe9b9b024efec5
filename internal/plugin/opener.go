// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package plugin provides frei0r plugin discovery and lifecycle control:
// loading a plugin library into a Descriptor, keeping one size-bound
// instance alive in a Manager, and buffering parameter edits until the
// next update.
package plugin

import (
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/internal/plugin/native"
)

// Opener loads a plugin library by path and binds its symbol table.
// Implementations must not call Init.
type Opener interface {
	Open(path string) (frei0r.Library, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (frei0r.Library, error)

// Open implements Opener.
func (f OpenerFunc) Open(path string) (frei0r.Library, error) { return f(path) }

// NativeOpener dlopens shared objects in-process.
var NativeOpener Opener = OpenerFunc(func(path string) (frei0r.Library, error) {
	lib, err := native.Open(path)
	if err != nil {
		return nil, err
	}
	return lib, nil
})

// Router picks an Opener per candidate path.
//
// Scripts ending in .lua go to Script. Everything else goes to Sandbox when
// it is set, otherwise to Native.
type Router struct {
	Native  Opener
	Sandbox Opener
	Script  Opener
}

// Open implements Opener.
func (r Router) Open(path string) (frei0r.Library, error) {
	opener := r.Native
	switch {
	case strings.EqualFold(filepath.Ext(path), ".lua"):
		opener = r.Script
	case r.Sandbox != nil:
		opener = r.Sandbox
	}
	if opener == nil {
		return nil, oops.Code(frei0r.CodeLoad).
			With("path", path).
			Errorf("no loader configured for %s", filepath.Ext(path))
	}
	return opener.Open(path)
}
