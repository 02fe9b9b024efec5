// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package plugin

import (
	"fmt"
	"log/slog"

	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// sizeStep is the granularity frei0r plugins expect for frame dimensions.
const sizeStep = 8

// Size is a frame size in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Pixels returns Width*Height.
func (s Size) Pixels() int { return s.Width * s.Height }

// NormalizeSize rounds each dimension down to a multiple of 8, with 8 as
// the minimum.
func NormalizeSize(width, height int) Size {
	return Size{Width: normalizeDim(width), Height: normalizeDim(height)}
}

func normalizeDim(v int) int {
	v = (v / sizeStep) * sizeStep
	if v <= 0 {
		return sizeStep
	}
	return v
}

// Instance is one live plugin instance bound to a normalized size, with
// the frame buffers its updates read and write.
type Instance struct {
	handle frei0r.Handle
	size   Size
	out    []uint32
	in     [][]uint32
}

// Handle returns the plugin's opaque instance handle.
func (i *Instance) Handle() frei0r.Handle { return i.handle }

// Size returns the bound size.
func (i *Instance) Size() Size { return i.size }

// Output returns the output frame of the most recent update.
func (i *Instance) Output() []uint32 { return i.out }

// Inputs returns the input frames; sources have none.
func (i *Instance) Inputs() [][]uint32 { return i.in }

// Manager owns the single instance of one descriptor and the pending edits
// for it.
type Manager struct {
	desc          *Descriptor
	inst          *Instance
	pending       *PendingUpdates
	constructions int
}

// NewManager returns a manager with no instance yet.
func NewManager(d *Descriptor) *Manager {
	return &Manager{desc: d, pending: NewPendingUpdates()}
}

// Descriptor returns the plugin the manager drives.
func (m *Manager) Descriptor() *Descriptor { return m.desc }

// Pending returns the edit buffer producers write into.
func (m *Manager) Pending() *PendingUpdates { return m.pending }

// Instance returns the current instance, or nil before the first Ensure.
func (m *Manager) Instance() *Instance { return m.inst }

// Constructions counts successful constructs over the manager's life.
func (m *Manager) Constructions() int { return m.constructions }

// Ensure makes sure an instance bound to the normalized (width, height)
// exists. A size change destructs the old instance before constructing the
// new one, and every construction drops all pending edits.
func (m *Manager) Ensure(width, height int) (*Instance, error) {
	size := NormalizeSize(width, height)
	if m.inst != nil && m.inst.size == size {
		return m.inst, nil
	}

	lib := m.desc.Library()
	if m.inst != nil {
		slog.Debug("resizing plugin instance",
			"plugin", m.desc.Name(),
			"from", m.inst.size.String(),
			"to", size.String())
		lib.Destruct(m.inst.handle)
		m.inst = nil
	}

	if dropped := m.pending.Len(); dropped > 0 {
		slog.Warn("dropping pending parameter edits on construct",
			"plugin", m.desc.Name(),
			"dropped", dropped)
	}
	m.pending.Reset()

	handle := lib.Construct(size.Width, size.Height)
	if handle == 0 {
		return nil, oops.Code(frei0r.CodeInstance).
			With("plugin", m.desc.Name()).
			With("size", size.String()).
			Errorf("f0r_construct returned a null instance")
	}

	inst := &Instance{
		handle: handle,
		size:   size,
		out:    make([]uint32, size.Pixels()),
	}
	if n := m.desc.Kind().Inputs(); n > 0 {
		inst.in = make([][]uint32, n)
		for i := range inst.in {
			inst.in[i] = make([]uint32, size.Pixels())
		}
	}
	m.inst = inst
	m.constructions++
	return inst, nil
}

// Marshaller returns a marshaller for the current instance.
func (m *Manager) Marshaller() (Marshaller, error) {
	if m.inst == nil {
		return Marshaller{}, oops.Code(frei0r.CodeInstance).
			With("plugin", m.desc.Name()).
			Errorf("no instance")
	}
	return NewMarshaller(m.desc.Library(), m.inst.handle), nil
}

// Values reads every parameter of the current instance, keyed by index.
// It returns nil without an instance.
func (m *Manager) Values() map[int]frei0r.Value {
	if m.inst == nil {
		return nil
	}
	mr := NewMarshaller(m.desc.Library(), m.inst.handle)
	values := make(map[int]frei0r.Value, m.desc.NumParams())
	for i, p := range m.desc.Params() {
		values[i] = mr.Get(i, p.Kind)
	}
	return values
}

// Flush applies and clears every pending edit. It returns how many edits
// were applied.
func (m *Manager) Flush() int {
	if m.inst == nil {
		return 0
	}
	batch := m.pending.Drain()
	if batch.Len() == 0 {
		return 0
	}
	batch.Apply(NewMarshaller(m.desc.Library(), m.inst.handle))
	return batch.Len()
}

// Update runs one frame computation at time seconds using the entry point
// matching the plugin kind. Input frames must already be filled.
func (m *Manager) Update(time float64) error {
	if m.inst == nil {
		return oops.Code(frei0r.CodeInstance).
			With("plugin", m.desc.Name()).
			Errorf("update without an instance")
	}
	updaterFor(m.desc.Kind()).update(m.desc.Library(), m.inst, time)
	if err := m.desc.Fault(); err != nil {
		return oops.Code(frei0r.CodeFault).With("plugin", m.desc.Name()).Wrap(err)
	}
	return nil
}

// Close destructs the instance, if any. The descriptor stays loaded.
func (m *Manager) Close() {
	if m.inst == nil {
		return
	}
	m.desc.Library().Destruct(m.inst.handle)
	m.inst = nil
	m.pending.Reset()
}

// updater is the per-kind frame computation.
type updater interface {
	update(lib frei0r.Library, inst *Instance, time float64)
}

func updaterFor(kind frei0r.PluginKind) updater {
	switch kind {
	case frei0r.KindFilter:
		return filterUpdater{}
	case frei0r.KindMixer2:
		return mixer2Updater{}
	case frei0r.KindMixer3:
		return mixer3Updater{}
	default:
		return sourceUpdater{}
	}
}

type sourceUpdater struct{}

func (sourceUpdater) update(lib frei0r.Library, inst *Instance, time float64) {
	if lib.HasUpdate() {
		lib.Update(inst.handle, time, nil, inst.out)
		return
	}
	lib.Update2(inst.handle, time, nil, nil, nil, inst.out)
}

type filterUpdater struct{}

func (filterUpdater) update(lib frei0r.Library, inst *Instance, time float64) {
	if lib.HasUpdate() {
		lib.Update(inst.handle, time, inst.in[0], inst.out)
		return
	}
	lib.Update2(inst.handle, time, inst.in[0], nil, nil, inst.out)
}

type mixer2Updater struct{}

func (mixer2Updater) update(lib frei0r.Library, inst *Instance, time float64) {
	lib.Update2(inst.handle, time, inst.in[0], inst.in[1], nil, inst.out)
}

type mixer3Updater struct{}

func (mixer3Updater) update(lib frei0r.Library, inst *Instance, time float64) {
	lib.Update2(inst.handle, time, inst.in[0], inst.in[1], inst.in[2], inst.out)
}
