// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package frei0rtest provides an in-memory frei0r.Library that records every
// ABI call, for tests that must not dlopen real plugins.
package frei0rtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// Journal is an ordered, concurrency-safe record of ABI calls. Several
// libraries can share one journal so tests can assert cross-plugin ordering.
type Journal struct {
	mu    sync.Mutex
	calls []string
}

// Record appends a call.
func (j *Journal) Record(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the recorded calls.
func (j *Journal) Calls() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.calls))
	copy(out, j.calls)
	return out
}

// Count returns how many recorded calls equal call.
func (j *Journal) Count(call string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, c := range j.calls {
		if c == call {
			n++
		}
	}
	return n
}

// Reset forgets every recorded call.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = nil
}

// Library is a scriptable fake plugin.
//
// Update fills the output with Fill, or copies the first input when the
// plugin is a filter. Parameter values are kept per instance.
type Library struct {
	Label   string
	Info    frei0r.PluginInfo
	Params  []frei0r.ParamInfo
	Journal *Journal

	// InitResult is returned by Init; frei0r uses 1 for success.
	InitResult int
	// FailConstruct makes Construct return the null handle.
	FailConstruct bool
	NoUpdate      bool
	NoUpdate2     bool
	Fill          uint32
	// Defaults seeds every new instance's parameter values.
	Defaults map[int]frei0r.Value

	mu        sync.Mutex
	next      frei0r.Handle
	instances map[frei0r.Handle]*instance
	closed    bool
	fault     error
}

type instance struct {
	width, height int
	values        map[int]frei0r.Value
	lastTime      float64
	lastInputs    int
}

// NewSource returns a fake source plugin with the given label and params.
func NewSource(label string, params ...frei0r.ParamInfo) *Library {
	return newLibrary(label, frei0r.KindSource, params)
}

// NewFilter returns a fake filter plugin.
func NewFilter(label string, params ...frei0r.ParamInfo) *Library {
	return newLibrary(label, frei0r.KindFilter, params)
}

// NewMixer returns a fake mixer plugin of the given kind.
func NewMixer(label string, kind frei0r.PluginKind, params ...frei0r.ParamInfo) *Library {
	lib := newLibrary(label, kind, params)
	lib.NoUpdate = true
	return lib
}

func newLibrary(label string, kind frei0r.PluginKind, params []frei0r.ParamInfo) *Library {
	return &Library{
		Label: label,
		Info: frei0r.PluginInfo{
			Name:          label,
			Author:        "frei0rtest",
			Kind:          kind,
			ColorModel:    frei0r.ColorModelRGBA8888,
			Frei0rVersion: 1,
			MajorVersion:  0,
			MinorVersion:  1,
			NumParams:     len(params),
			Explanation:   "fake " + kind.String(),
		},
		Params:     params,
		Journal:    &Journal{},
		InitResult: 1,
		Fill:       0xff00ff00,
		instances:  make(map[frei0r.Handle]*instance),
	}
}

func (l *Library) record(format string, args ...any) {
	if l.Journal != nil {
		l.Journal.Record(l.Label+" "+format, args...)
	}
}

// Init implements frei0r.Library.
func (l *Library) Init() int {
	l.record("init")
	return l.InitResult
}

// Deinit implements frei0r.Library.
func (l *Library) Deinit() {
	l.record("deinit")
}

// PluginInfo implements frei0r.Library.
func (l *Library) PluginInfo() frei0r.PluginInfo {
	l.record("get_plugin_info")
	return l.Info
}

// ParamInfo implements frei0r.Library.
func (l *Library) ParamInfo(index int) frei0r.ParamInfo {
	l.record("get_param_info %d", index)
	return l.Params[index]
}

// Construct implements frei0r.Library.
func (l *Library) Construct(width, height int) frei0r.Handle {
	l.record("construct %dx%d", width, height)
	if l.FailConstruct {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	values := make(map[int]frei0r.Value, len(l.Defaults))
	for i, v := range l.Defaults {
		values[i] = v
	}
	l.instances[l.next] = &instance{width: width, height: height, values: values}
	return l.next
}

// Destruct implements frei0r.Library.
func (l *Library) Destruct(h frei0r.Handle) {
	l.record("destruct")
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.instances, h)
}

// SetParam implements frei0r.Library.
func (l *Library) SetParam(h frei0r.Handle, index int, v frei0r.Value) {
	l.record("set_param_value %d %s", index, v)
	l.mu.Lock()
	defer l.mu.Unlock()
	if inst, ok := l.instances[h]; ok {
		inst.values[index] = v
	}
}

// GetParam implements frei0r.Library.
func (l *Library) GetParam(h frei0r.Handle, index int, kind frei0r.ParamKind) frei0r.Value {
	l.record("get_param_value %d", index)
	l.mu.Lock()
	defer l.mu.Unlock()
	if inst, ok := l.instances[h]; ok {
		if v, ok := inst.values[index]; ok {
			return v
		}
	}
	return frei0r.Value{Kind: kind}
}

// HasUpdate implements frei0r.Library.
func (l *Library) HasUpdate() bool { return !l.NoUpdate }

// HasUpdate2 implements frei0r.Library.
func (l *Library) HasUpdate2() bool { return !l.NoUpdate2 }

// Update implements frei0r.Library.
func (l *Library) Update(h frei0r.Handle, time float64, in, out []uint32) {
	inputs := 0
	if in != nil {
		inputs = 1
	}
	l.record("update inputs=%d", inputs)
	l.render(h, time, inputs, out, in)
}

// Update2 implements frei0r.Library.
func (l *Library) Update2(h frei0r.Handle, time float64, in1, in2, in3, out []uint32) {
	inputs := 0
	for _, in := range [][]uint32{in1, in2, in3} {
		if in != nil {
			inputs++
		}
	}
	l.record("update2 inputs=%d", inputs)
	l.render(h, time, inputs, out, in1)
}

func (l *Library) render(h frei0r.Handle, time float64, inputs int, out, first []uint32) {
	l.mu.Lock()
	if inst, ok := l.instances[h]; ok {
		inst.lastTime = time
		inst.lastInputs = inputs
	}
	l.mu.Unlock()
	if l.Info.Kind == frei0r.KindFilter && first != nil {
		copy(out, first)
		return
	}
	for i := range out {
		out[i] = l.Fill
	}
}

// Close implements frei0r.Library.
func (l *Library) Close() error {
	l.record("close")
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("frei0rtest: library closed twice")
	}
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Library) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Value returns the parameter value currently held by instance h.
func (l *Library) Value(h frei0r.Handle, index int) (frei0r.Value, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, ok := l.instances[h]
	if !ok {
		return frei0r.Value{}, false
	}
	v, ok := inst.values[index]
	return v, ok
}

// Instances returns the number of live instances.
func (l *Library) Instances() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.instances)
}

// LastTime returns the time passed to the most recent update of instance h.
func (l *Library) LastTime(h frei0r.Handle) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if inst, ok := l.instances[h]; ok {
		return inst.lastTime
	}
	return 0
}

// SetFault makes the library report err through frei0r.Faulter.
func (l *Library) SetFault(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fault = err
}

// Fault implements frei0r.Faulter.
func (l *Library) Fault() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fault
}

// Opener hands out fake libraries by path and records opens in Journal.
type Opener struct {
	Libraries map[string]*Library
	Journal   *Journal
	// Errors makes Open fail for a path.
	Errors map[string]error
}

// NewOpener returns an opener whose libraries all share one journal.
func NewOpener(libs map[string]*Library) *Opener {
	j := &Journal{}
	for _, lib := range libs {
		lib.Journal = j
	}
	return &Opener{Libraries: libs, Journal: j, Errors: make(map[string]error)}
}

// Open returns the library registered for path.
func (o *Opener) Open(path string) (frei0r.Library, error) {
	if o.Journal != nil {
		o.Journal.Record("open %s", path)
	}
	if err, ok := o.Errors[path]; ok {
		return nil, err
	}
	lib, ok := o.Libraries[path]
	if !ok {
		return nil, fmt.Errorf("frei0rtest: no library at %s", path)
	}
	lib.mu.Lock()
	lib.closed = false
	lib.mu.Unlock()
	return lib, nil
}

var (
	_ frei0r.Library = (*Library)(nil)
	_ frei0r.Faulter = (*Library)(nil)
)
