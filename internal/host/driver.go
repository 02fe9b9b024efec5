// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package host drives the active frei0r plugin: it consumes plugin and size
// requests, keeps one instance alive, applies parameter edits and publishes
// one frame per tick.
package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/framebus"
	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
	"github.com/frei0rhost/frei0rhost/pkg/errutil"
)

// None is the plugin selection that leaves no plugin active.
const None = "none"

// Defaults used when nothing else is configured.
const (
	DefaultTopic    = "frei0r/image"
	DefaultInterval = 100 * time.Millisecond
	MaxDimension    = 2048
	MaxInputs       = 3
)

// ErrDriverClosed is returned by calls made after Close.
var ErrDriverClosed = errors.New("driver closed")

// Request is the latest plugin selection and output size asked for.
type Request struct {
	Path   string
	Width  int
	Height int
}

// Schema describes the active plugin's parameters for configuration
// front ends. Params are indexed by parameter index.
type Schema struct {
	Path   string
	Info   frei0r.PluginInfo
	Params []frei0r.ParamInfo
}

// Option configures a Driver.
type Option func(*Driver)

// WithPublisher sets where frames go. The default discards them.
func WithPublisher(p framebus.Publisher) Option {
	return func(d *Driver) { d.bus = p }
}

// WithTopic sets the topic of published frames.
func WithTopic(topic string) Option {
	return func(d *Driver) { d.topic = topic }
}

// WithPresets queues assignments every time a plugin becomes active.
// Assignments naming parameters the plugin lacks are logged and skipped.
func WithPresets(presets []*plugin.Assignment) Option {
	return func(d *Driver) { d.presets = presets }
}

// WithSchemaHook is called with the new schema after every plugin switch.
func WithSchemaHook(fn func(Schema)) Option {
	return func(d *Driver) { d.onSchema = fn }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// active is the loaded plugin and its instance.
type active struct {
	desc   *plugin.Descriptor
	mgr    *plugin.Manager
	schema Schema
}

// Driver runs the update cycle. Requests, parameter edits and input frames
// may come from any goroutine; Tick is the single consumer.
type Driver struct {
	opener   plugin.Opener
	bus      framebus.Publisher
	topic    string
	presets  []*plugin.Assignment
	onSchema func(Schema)
	now      func() time.Time
	start    time.Time

	// reqMu guards wanted; mailbox holds at most the latest request.
	reqMu   sync.Mutex
	wanted  Request
	mailbox chan Request

	// tickMu serializes ticks; req and failed belong to the tick.
	tickMu sync.Mutex
	req    Request
	failed string

	mu     sync.RWMutex
	cur    *active
	inputs [MaxInputs]*framebus.Frame
	closed bool
}

// New creates a driver that loads plugins through opener. No plugin is
// selected until Select is called.
func New(opener plugin.Opener, opts ...Option) *Driver {
	d := &Driver{
		opener:  opener,
		bus:     framebus.PublisherFunc(func(context.Context, framebus.Frame) {}),
		topic:   DefaultTopic,
		now:     time.Now,
		wanted:  Request{Path: None, Width: 8, Height: 8},
		mailbox: make(chan Request, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.req = d.wanted
	d.start = d.now()
	return d
}

// Select asks for the plugin at path. None deactivates the current plugin.
// The switch happens at the start of the next tick.
func (d *Driver) Select(path string) {
	if path == "" {
		path = None
	}
	d.reqMu.Lock()
	d.wanted.Path = path
	r := d.wanted
	d.reqMu.Unlock()
	d.post(r)
}

// Resize asks for a new output size. Dimensions are clamped to
// [1, MaxDimension] here and normalized to multiples of 8 by the instance.
func (d *Driver) Resize(width, height int) {
	d.reqMu.Lock()
	d.wanted.Width = clampDim(width)
	d.wanted.Height = clampDim(height)
	r := d.wanted
	d.reqMu.Unlock()
	d.post(r)
}

// Requested returns the latest request.
func (d *Driver) Requested() Request {
	d.reqMu.Lock()
	defer d.reqMu.Unlock()
	return d.wanted
}

func clampDim(v int) int {
	return min(max(v, 1), MaxDimension)
}

// post replaces whatever request is waiting in the mailbox with r.
func (d *Driver) post(r Request) {
	for {
		select {
		case d.mailbox <- r:
			return
		default:
		}
		select {
		case <-d.mailbox:
		default:
		}
	}
}

// SetInput stores the latest frame for input slot (0-based). It is scaled
// into the instance's input buffer at dispatch; empty slots read as black.
func (d *Driver) SetInput(slot int, f framebus.Frame) error {
	if slot < 0 || slot >= MaxInputs {
		return oops.Code(frei0r.CodeParamIndex).With("slot", slot).Errorf("input slot out of range")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDriverClosed
	}
	d.inputs[slot] = &f
	return nil
}

// Schema returns the active plugin's schema, if any.
func (d *Driver) Schema() (Schema, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.cur == nil {
		return Schema{}, false
	}
	return d.cur.schema, true
}

// Values reads the active instance's current parameter values.
func (d *Driver) Values() map[int]frei0r.Value {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.cur == nil {
		return nil
	}
	return d.cur.mgr.Values()
}

// Tick runs one update cycle:
//
//  1. take the latest request, if any
//  2. with None selected, release any active plugin and stop
//  3. on a path change, release the old plugin, load the new one, construct
//     it, publish its schema and queue presets
//  4. make sure the instance matches the requested size
//  5. flush pending parameter edits
//  6. fill the inputs and run the kind's update
//  7. publish the output frame
//
// Errors abort the tick and leave no plugin active. A path that failed is
// not retried until a new request arrives.
func (d *Driver) Tick(ctx context.Context) error {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	started := time.Now()
	result, err := d.tick(ctx)
	if err != nil {
		result = ResultError
	}
	recordTick(result, time.Since(started))
	return err
}

func (d *Driver) tick(ctx context.Context) (string, error) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ResultError, ErrDriverClosed
	}

	select {
	case r := <-d.mailbox:
		d.req = r
		d.failed = ""
	default:
	}
	req := d.req

	if req.Path == None {
		d.deactivate()
		return ResultIdle, nil
	}
	if req.Path == d.failed {
		return ResultIdle, nil
	}

	d.mu.RLock()
	cur := d.cur
	d.mu.RUnlock()

	if cur == nil || cur.desc.Path() != req.Path {
		d.deactivate()
		next, err := d.activate(req)
		if err != nil {
			d.failed = req.Path
			PluginLoads.WithLabelValues(ResultError).Inc()
			errutil.LogError(slog.Default(), "plugin switch failed", err)
			return ResultError, err
		}
		PluginLoads.WithLabelValues(ResultSuccess).Inc()
		cur = next
	}

	before := cur.mgr.Constructions()
	inst, err := cur.mgr.Ensure(req.Width, req.Height)
	if err != nil {
		return ResultError, d.fail(req.Path, "plugin instance failed", err)
	}
	if n := cur.mgr.Constructions() - before; n > 0 {
		InstanceConstructions.Add(float64(n))
	}

	if n := cur.mgr.Flush(); n > 0 {
		slog.Debug("applied parameter edits", "plugin", cur.desc.Name(), "count", n)
	}

	d.fillInputs(inst, cur.desc.Info().ColorModel)

	now := d.now()
	if err := cur.mgr.Update(now.Sub(d.start).Seconds()); err != nil {
		return ResultError, d.fail(req.Path, "plugin update failed", err)
	}

	size := inst.Size()
	frame := framebus.FromPixels(d.topic, now, size.Width, size.Height, cur.desc.Info().ColorModel, inst.Output())
	d.bus.Publish(ctx, frame)
	return ResultSuccess, nil
}

// activate loads the plugin at req.Path, constructs it at the requested
// size and installs it as current.
func (d *Driver) activate(req Request) (*active, error) {
	desc, err := plugin.Load(d.opener, req.Path)
	if err != nil {
		return nil, err
	}
	mgr := plugin.NewManager(desc)
	if _, err := mgr.Ensure(req.Width, req.Height); err != nil {
		if rerr := desc.Release(); rerr != nil {
			errutil.LogError(slog.Default(), "plugin release failed", rerr)
		}
		return nil, err
	}
	InstanceConstructions.Inc()

	next := &active{
		desc: desc,
		mgr:  mgr,
		schema: Schema{
			Path:   desc.Path(),
			Info:   desc.Info(),
			Params: desc.Params(),
		},
	}
	d.queuePresets(next)

	d.mu.Lock()
	d.cur = next
	d.mu.Unlock()

	slog.Info("plugin active",
		"plugin", desc.Name(),
		"path", desc.Path(),
		"kind", desc.Kind().String(),
		"size", mgr.Instance().Size().String(),
		"params", desc.NumParams())

	if d.onSchema != nil {
		d.onSchema(next.schema)
	}
	return next, nil
}

func (d *Driver) queuePresets(a *active) {
	for _, preset := range d.presets {
		edit, err := preset.Resolve(a.schema.Params)
		if err != nil {
			slog.Warn("skipping preset", "plugin", a.desc.Name(), "preset", preset.String(), "error", err)
			continue
		}
		edit.Queue(a.mgr.Pending())
	}
}

// fail logs err, releases the current plugin and marks path as failed.
func (d *Driver) fail(path, msg string, err error) error {
	errutil.LogError(slog.Default(), msg, err)
	d.failed = path
	d.deactivate()
	return err
}

// deactivate releases the current plugin, if any.
func (d *Driver) deactivate() {
	d.mu.Lock()
	cur := d.cur
	d.cur = nil
	d.mu.Unlock()
	if cur == nil {
		return
	}
	cur.mgr.Close()
	if err := cur.desc.Release(); err != nil {
		errutil.LogError(slog.Default(), "plugin release failed", err)
	}
	slog.Info("plugin inactive", "plugin", cur.desc.Name(), "path", cur.desc.Path())
}

// fillInputs scales the latest input frames into the instance buffers.
func (d *Driver) fillInputs(inst *plugin.Instance, model frei0r.ColorModel) {
	size := inst.Size()
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i, buf := range inst.Inputs() {
		if i < MaxInputs && d.inputs[i] != nil {
			framebus.Scale(*d.inputs[i], buf, size.Width, size.Height, model)
			continue
		}
		clear(buf)
	}
}

// Run ticks every interval until ctx is done. Tick errors are logged by the
// tick itself and never stop the loop.
func (d *Driver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.Tick(ctx); errors.Is(err, ErrDriverClosed) {
				return err
			}
		}
	}
}

// Close releases the active plugin. Later ticks fail with ErrDriverClosed.
func (d *Driver) Close() error {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.deactivate()
	return nil
}
