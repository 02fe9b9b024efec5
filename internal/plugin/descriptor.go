// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package plugin

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/pkg/errutil"
)

// abiConstraint accepts every frei0r 1.x plugin.
var abiConstraint = mustConstraint("^1")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// Descriptor is one loaded and initialized plugin library together with its
// static metadata. It owns the library until Release.
type Descriptor struct {
	path    string
	lib     frei0r.Library
	info    frei0r.PluginInfo
	version *semver.Version

	releaseOnce sync.Once
	releaseErr  error
}

// Load opens path, initializes the plugin and reads its metadata.
//
// Every failure leaves nothing loaded: a library that fails init is unloaded
// without deinit, and a library with unusable metadata is deinitialized and
// unloaded before the error is returned.
func Load(opener Opener, path string) (*Descriptor, error) {
	lib, err := opener.Open(path)
	if err != nil {
		if errutil.Code(err) != "" {
			return nil, oops.With("path", path).Wrap(err)
		}
		return nil, oops.Code(frei0r.CodeLoad).With("path", path).Wrap(err)
	}

	if lib.Init() == 0 {
		initErr := oops.Code(frei0r.CodeInit).With("path", path).Errorf("f0r_init rejected the plugin")
		if f, ok := lib.(frei0r.Faulter); ok && f.Fault() != nil {
			initErr = oops.Code(frei0r.CodeInit).With("path", path).Wrapf(f.Fault(), "f0r_init")
		}
		if closeErr := lib.Close(); closeErr != nil {
			slog.Warn("unload after failed init", "path", path, "error", closeErr)
		}
		return nil, initErr
	}

	d := &Descriptor{path: path, lib: lib, info: lib.PluginInfo()}
	if err := d.validate(); err != nil {
		lib.Deinit()
		if closeErr := lib.Close(); closeErr != nil {
			slog.Warn("unload after invalid metadata", "path", path, "error", closeErr)
		}
		return nil, err
	}

	slog.Info("loaded plugin",
		"path", path,
		"name", d.info.Name,
		"kind", d.info.Kind.String(),
		"color_model", d.info.ColorModel.String(),
		"version", d.version.String(),
		"params", d.info.NumParams)

	return d, nil
}

// Use loads path, hands the descriptor to fn and releases it afterwards,
// whatever fn returns.
func Use(opener Opener, path string, fn func(*Descriptor) error) (err error) {
	d, err := Load(opener, path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, d.Release())
	}()
	return fn(d)
}

// validate rejects metadata the ABI leaves undefined.
func (d *Descriptor) validate() error {
	info := d.info
	builder := oops.Code(frei0r.CodeInvalidMetadata).
		With("path", d.path).
		With("plugin_type", int32(info.Kind)).
		With("color_model", int32(info.ColorModel))

	if !info.Kind.Valid() {
		return builder.Errorf("plugin type %d is not a frei0r plugin kind", int32(info.Kind))
	}
	if !info.ColorModel.Valid() {
		return builder.Errorf("color model %d is not a frei0r color model", int32(info.ColorModel))
	}
	if info.NumParams < 0 {
		return builder.With("num_params", info.NumParams).Errorf("negative parameter count")
	}
	if info.Frei0rVersion < 0 || info.MajorVersion < 0 || info.MinorVersion < 0 {
		return builder.With("version", info.Version()).Errorf("negative version component")
	}

	abi := semver.New(uint64(info.Frei0rVersion), 0, 0, "", "")
	if !abiConstraint.Check(abi) {
		return builder.With("frei0r_version", info.Frei0rVersion).
			Hint("only frei0r 1.x plugins can be hosted").
			Errorf("unsupported frei0r API version %s", abi)
	}

	switch info.Kind {
	case frei0r.KindMixer2, frei0r.KindMixer3:
		if !d.lib.HasUpdate2() {
			return builder.Errorf("%s plugin does not export f0r_update2", info.Kind)
		}
	default:
		if !d.lib.HasUpdate() && !d.lib.HasUpdate2() {
			return builder.Errorf("plugin exports no update entry point")
		}
	}

	d.version = semver.New(uint64(info.MajorVersion), uint64(info.MinorVersion), 0, "", "")
	return nil
}

// Path returns the library path the descriptor was loaded from.
func (d *Descriptor) Path() string { return d.path }

// Name returns the plugin's display name.
func (d *Descriptor) Name() string { return d.info.Name }

// Info returns the static metadata read at load time.
func (d *Descriptor) Info() frei0r.PluginInfo { return d.info }

// Kind returns the plugin kind.
func (d *Descriptor) Kind() frei0r.PluginKind { return d.info.Kind }

// Version returns the plugin's own major.minor version.
func (d *Descriptor) Version() *semver.Version { return d.version }

// Library returns the bound library. It must not be used after Release.
func (d *Descriptor) Library() frei0r.Library { return d.lib }

// NumParams returns the declared parameter count.
func (d *Descriptor) NumParams() int { return d.info.NumParams }

// Param queries the plugin for the parameter at index.
func (d *Descriptor) Param(index int) (frei0r.ParamInfo, error) {
	if err := d.checkIndex(index); err != nil {
		return frei0r.ParamInfo{}, err
	}
	return d.lib.ParamInfo(index), nil
}

// Params queries every parameter. Results are not cached.
func (d *Descriptor) Params() []frei0r.ParamInfo {
	params := make([]frei0r.ParamInfo, d.info.NumParams)
	for i := range params {
		params[i] = d.lib.ParamInfo(i)
	}
	return params
}

func (d *Descriptor) checkIndex(index int) error {
	if index < 0 || index >= d.info.NumParams {
		return oops.Code(frei0r.CodeParamIndex).
			With("plugin", d.info.Name).
			With("index", index).
			With("num_params", d.info.NumParams).
			Errorf("parameter index %d out of range [0, %d)", index, d.info.NumParams)
	}
	return nil
}

// Fault returns the library's transport failure, if it can report one.
func (d *Descriptor) Fault() error {
	if f, ok := d.lib.(frei0r.Faulter); ok {
		return f.Fault()
	}
	return nil
}

// Release calls deinit and unloads the library. Only the first call has an
// effect; later calls return the first result.
func (d *Descriptor) Release() error {
	d.releaseOnce.Do(func() {
		d.lib.Deinit()
		if err := d.lib.Close(); err != nil {
			d.releaseErr = oops.With("path", d.path).Wrap(err)
		}
		slog.Info("released plugin", "path", d.path, "name", d.info.Name)
	})
	return d.releaseErr
}
