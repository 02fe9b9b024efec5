// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

//go:build !darwin && !freebsd && !linux

package native

import (
	"runtime"

	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// Library is unavailable on this platform.
type Library struct {
	frei0r.Library
}

// Open always fails: shared-object plugins need dlopen.
func Open(path string) (*Library, error) {
	return nil, oops.Code(frei0r.CodeLoad).
		With("path", path).
		With("goos", runtime.GOOS).
		Errorf("native frei0r plugins are not supported on %s", runtime.GOOS)
}
