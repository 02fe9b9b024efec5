// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package lua runs frei0r effects written in Lua. A script describes itself
// in a global plugin table and renders frames from a global update function:
//
//	plugin = {
//	  name = "fade", kind = "filter", color_model = "rgba8888",
//	  major = 0, minor = 1, explanation = "fades to black",
//	  params = {
//	    { name = "amount", type = "double", default = 0.5 },
//	  },
//	}
//
//	function update(state, t)
//	  local k = 1 - frei0r.param("amount")
//	  for y = 0, frei0r.height() - 1 do
//	    for x = 0, frei0r.width() - 1 do
//	      local r, g, b, a = frei0r.input(1, x, y)
//	      frei0r.pixel(x, y, r * k, g * k, b * k, a)
//	    end
//	  end
//	end
//
// Optional globals are init(), deinit(), construct(width, height), whose
// result is passed to update as state, and destruct(state).
package lua

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// DefaultCallTimeout bounds every call into a script.
const DefaultCallTimeout = time.Second

// Compile-time interface checks.
var (
	_ frei0r.Library = (*Library)(nil)
	_ frei0r.Faulter = (*Library)(nil)
)

// Option configures a Library.
type Option func(*Library)

// WithCallTimeout bounds each call into the script. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(l *Library) { l.timeout = d }
}

// WithStateFactory replaces the sandboxed state factory.
func WithStateFactory(f *StateFactory) Option {
	return func(l *Library) { l.factory = f }
}

// instance is the host side of one constructed script instance.
type instance struct {
	width  int
	height int
	values []frei0r.Value
	state  lua.LValue
}

// frame is what the frei0r.* host functions see during one call.
type frame struct {
	inst   *instance
	inputs [][]uint32
	out    []uint32
}

// Library is a Lua script exposed as a frei0r.Library. All calls are
// serialized; a gopher-lua state is not safe for concurrent use.
type Library struct {
	path    string
	factory *StateFactory
	timeout time.Duration

	mu        sync.Mutex
	L         *lua.LState
	info      frei0r.PluginInfo
	params    []frei0r.ParamInfo
	defaults  []frei0r.Value
	instances map[frei0r.Handle]*instance
	next      frei0r.Handle
	cur       *frame
	fault     error
	closed    bool
}

// Open loads the script at path and reads its plugin table. The script's
// top level runs once, inside the sandbox.
func Open(path string, opts ...Option) (*Library, error) {
	src, err := os.ReadFile(path) //nolint:gosec // path comes from the plugin scanner or the operator
	if err != nil {
		return nil, oops.In("lua").Code(frei0r.CodeLoad).With("path", path).
			Hint("check the script path").Wrap(err)
	}

	l := &Library{
		path:      path,
		factory:   NewStateFactory(),
		timeout:   DefaultCallTimeout,
		instances: make(map[frei0r.Handle]*instance),
	}
	for _, opt := range opts {
		opt(l)
	}

	L, err := l.factory.NewState(context.Background())
	if err != nil {
		return nil, oops.In("lua").Code(frei0r.CodeLoad).With("path", path).Wrap(err)
	}
	l.L = L
	l.registerHostFunctions()

	if err := l.bounded(func() error { return L.DoString(string(src)) }); err != nil {
		L.Close()
		return nil, oops.In("lua").Code(frei0r.CodeLoad).With("path", path).
			Hint("the script failed to run; check its syntax").Wrap(err)
	}
	if err := l.readPluginTable(); err != nil {
		L.Close()
		return nil, err
	}
	if L.GetGlobal("update").Type() != lua.LTFunction {
		L.Close()
		return nil, oops.In("lua").Code(frei0r.CodeSymbol).With("path", path).
			With("missing", []string{"update"}).
			Errorf("script does not define an update function")
	}
	return l, nil
}

// Opener adapts Open to the host's opener signature.
func Opener(opts ...Option) func(path string) (frei0r.Library, error) {
	return func(path string) (frei0r.Library, error) {
		l, err := Open(path, opts...)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

// Path returns the script path.
func (l *Library) Path() string { return l.path }

// bounded runs fn with the call timeout attached to the state.
func (l *Library) bounded(fn func() error) error {
	if l.timeout <= 0 {
		return fn()
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	l.L.SetContext(ctx)
	defer l.L.RemoveContext()
	return fn()
}

// call invokes fn in protected mode and returns nret results.
func (l *Library) call(name string, fn lua.LValue, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	top := l.L.GetTop()
	defer l.L.SetTop(top)

	err := l.bounded(func() error {
		return l.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...)
	})
	if err != nil {
		return nil, oops.In("lua").With("path", l.path).With("function", name).Wrap(err)
	}
	rets := make([]lua.LValue, nret)
	for i := range rets {
		rets[i] = l.L.Get(top + 1 + i)
	}
	return rets, nil
}

// function returns the named global if it is a function.
func (l *Library) function(name string) (lua.LValue, bool) {
	fn := l.L.GetGlobal(name)
	return fn, fn.Type() == lua.LTFunction
}

// usable reports whether calls may reach the script. Callers hold mu.
func (l *Library) usable() bool {
	return !l.closed && l.fault == nil
}

// Fault implements frei0r.Faulter. A runtime error or timeout inside update
// is kept here and disables the script.
func (l *Library) Fault() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fault
}

// Init implements frei0r.Library. A script without init always succeeds;
// one whose init errors or returns false fails.
func (l *Library) Init() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.usable() {
		return 0
	}
	fn, ok := l.function("init")
	if !ok {
		return 1
	}
	rets, err := l.call("init", fn, 1)
	if err != nil {
		slog.Warn("lua init failed", "path", l.path, "error", err)
		return 0
	}
	if rets[0] == lua.LFalse {
		return 0
	}
	return 1
}

// Deinit implements frei0r.Library.
func (l *Library) Deinit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.usable() {
		return
	}
	if fn, ok := l.function("deinit"); ok {
		if _, err := l.call("deinit", fn, 0); err != nil {
			slog.Warn("lua deinit failed", "path", l.path, "error", err)
		}
	}
}

// PluginInfo implements frei0r.Library.
func (l *Library) PluginInfo() frei0r.PluginInfo {
	return l.info
}

// ParamInfo implements frei0r.Library.
func (l *Library) ParamInfo(index int) frei0r.ParamInfo {
	if index < 0 || index >= len(l.params) {
		return frei0r.ParamInfo{}
	}
	return l.params[index]
}

// Construct implements frei0r.Library. Parameters start at their declared
// defaults.
func (l *Library) Construct(width, height int) frei0r.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.usable() {
		return 0
	}

	inst := &instance{
		width:  width,
		height: height,
		values: append([]frei0r.Value(nil), l.defaults...),
		state:  lua.LNil,
	}
	if fn, ok := l.function("construct"); ok {
		l.cur = &frame{inst: inst}
		rets, err := l.call("construct", fn, 1, lua.LNumber(width), lua.LNumber(height))
		l.cur = nil
		if err != nil {
			slog.Warn("lua construct failed", "path", l.path, "error", err)
			return 0
		}
		inst.state = rets[0]
	}

	l.next++
	l.instances[l.next] = inst
	return l.next
}

// Destruct implements frei0r.Library.
func (l *Library) Destruct(h frei0r.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, ok := l.instances[h]
	if !ok {
		return
	}
	delete(l.instances, h)
	if !l.usable() {
		return
	}
	if fn, ok := l.function("destruct"); ok {
		l.cur = &frame{inst: inst}
		if _, err := l.call("destruct", fn, 0, inst.state); err != nil {
			slog.Warn("lua destruct failed", "path", l.path, "error", err)
		}
		l.cur = nil
	}
}

// SetParam implements frei0r.Library.
func (l *Library) SetParam(h frei0r.Handle, index int, v frei0r.Value) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, ok := l.instances[h]
	if !ok || index < 0 || index >= len(inst.values) {
		return
	}
	if v.Kind != l.params[index].Kind {
		return
	}
	inst.values[index] = v
}

// GetParam implements frei0r.Library.
func (l *Library) GetParam(h frei0r.Handle, index int, kind frei0r.ParamKind) frei0r.Value {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, ok := l.instances[h]
	if !ok || index < 0 || index >= len(inst.values) || inst.values[index].Kind != kind {
		return frei0r.Value{Kind: kind}
	}
	return inst.values[index]
}

// HasUpdate implements frei0r.Library.
func (l *Library) HasUpdate() bool { return true }

// HasUpdate2 implements frei0r.Library. The script's update serves both.
func (l *Library) HasUpdate2() bool { return true }

// Update implements frei0r.Library.
func (l *Library) Update(h frei0r.Handle, time float64, in, out []uint32) {
	var inputs [][]uint32
	if in != nil {
		inputs = [][]uint32{in}
	}
	l.render(h, time, inputs, out)
}

// Update2 implements frei0r.Library.
func (l *Library) Update2(h frei0r.Handle, time float64, in1, in2, in3, out []uint32) {
	inputs := [][]uint32{in1, in2, in3}
	for len(inputs) > 0 && inputs[len(inputs)-1] == nil {
		inputs = inputs[:len(inputs)-1]
	}
	l.render(h, time, inputs, out)
}

func (l *Library) render(h frei0r.Handle, time float64, inputs [][]uint32, out []uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.usable() {
		return
	}
	inst, ok := l.instances[h]
	if !ok {
		return
	}

	fn, _ := l.function("update")
	l.cur = &frame{inst: inst, inputs: inputs, out: out}
	_, err := l.call("update", fn, 0, inst.state, lua.LNumber(time))
	l.cur = nil
	if err != nil {
		l.fault = oops.Code(frei0r.CodeFault).With("path", l.path).Wrap(err)
		slog.Error("lua update failed, disabling script", "path", l.path, "error", err)
	}
}

// Close implements frei0r.Library.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.instances = make(map[frei0r.Handle]*instance)
	l.L.Close()
	return nil
}
