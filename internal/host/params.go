// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package host

import (
	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
)

// Parameter edits are checked against the active plugin's schema and
// buffered; the next tick applies them before its update.

// SetBool queues a bool parameter edit.
func (d *Driver) SetBool(index int, v bool) error {
	return d.edit(index, frei0r.ParamBool, func(p *plugin.PendingUpdates) { p.SetBool(index, v) })
}

// SetDouble queues a double parameter edit.
func (d *Driver) SetDouble(index int, v float64) error {
	return d.edit(index, frei0r.ParamDouble, func(p *plugin.PendingUpdates) { p.SetDouble(index, v) })
}

// SetColor queues a whole color parameter edit.
func (d *Driver) SetColor(index int, c frei0r.Color) error {
	return d.edit(index, frei0r.ParamColor, func(p *plugin.PendingUpdates) {
		p.Set(index, frei0r.ColorValue(c))
	})
}

// SetColorChannel queues an edit of one color channel. Edits of the other
// channels made before the next tick are kept.
func (d *Driver) SetColorChannel(index int, ch plugin.Channel, v float32) error {
	if !ch.Valid() {
		return badComponent(index, frei0r.ParamColor, ch.String())
	}
	return d.edit(index, frei0r.ParamColor, func(p *plugin.PendingUpdates) { p.SetColorChannel(index, ch, v) })
}

// SetPosition queues a whole position parameter edit.
func (d *Driver) SetPosition(index int, pos frei0r.Position) error {
	return d.edit(index, frei0r.ParamPosition, func(p *plugin.PendingUpdates) {
		p.Set(index, frei0r.PositionValue(pos))
	})
}

// SetPositionAxis queues an edit of one position axis.
func (d *Driver) SetPositionAxis(index int, axis plugin.Axis, v float64) error {
	if !axis.Valid() {
		return badComponent(index, frei0r.ParamPosition, axis.String())
	}
	return d.edit(index, frei0r.ParamPosition, func(p *plugin.PendingUpdates) { p.SetPositionAxis(index, axis, v) })
}

// SetString queues a string parameter edit.
func (d *Driver) SetString(index int, v string) error {
	return d.edit(index, frei0r.ParamString, func(p *plugin.PendingUpdates) { p.SetString(index, v) })
}

// Apply parses "name=value" assignments and queues them. Nothing is queued
// unless every assignment resolves.
func (d *Driver) Apply(texts ...string) error {
	assignments, err := plugin.ParseAssignments(texts)
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.usable(); err != nil {
		return err
	}
	edits, err := plugin.ResolveAll(d.cur.schema.Params, assignments)
	if err != nil {
		return err
	}
	for _, e := range edits {
		e.Queue(d.cur.mgr.Pending())
	}
	return nil
}

func (d *Driver) edit(index int, kind frei0r.ParamKind, queue func(*plugin.PendingUpdates)) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.usable(); err != nil {
		return err
	}

	params := d.cur.schema.Params
	if index < 0 || index >= len(params) {
		return oops.Code(frei0r.CodeParamIndex).
			With("plugin", d.cur.schema.Info.Name).
			With("index", index).
			With("num_params", len(params)).
			Errorf("parameter index %d out of range [0, %d)", index, len(params))
	}
	if got := params[index].Kind; got != kind {
		return oops.Code(frei0r.CodeParamKind).
			With("plugin", d.cur.schema.Info.Name).
			With("param", params[index].Name).
			Errorf("parameter %q is %s, not %s", params[index].Name, got, kind)
	}
	queue(d.cur.mgr.Pending())
	return nil
}

func badComponent(index int, kind frei0r.ParamKind, component string) error {
	return oops.Code(frei0r.CodeParamKind).
		With("index", index).
		With("component", component).
		Errorf("%s parameter %d has no component %s", kind, index, component)
}

// usable reports why edits cannot be taken. Callers hold d.mu.
func (d *Driver) usable() error {
	if d.closed {
		return ErrDriverClosed
	}
	if d.cur == nil {
		return oops.Code(frei0r.CodeInstance).Errorf("no active plugin")
	}
	return nil
}
