// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package plugin

import (
	"maps"
	"slices"
	"sync"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// PendingUpdates buffers parameter edits between updates. Each kind keeps a
// map from parameter index to value, so repeated edits of one index before a
// flush collapse to the last one.
//
// Producers may call the setters from any goroutine. The update driver is
// the single consumer through Drain.
type PendingUpdates struct {
	mu        sync.Mutex
	bools     map[int]bool
	doubles   map[int]float64
	colors    [3]map[int]float32
	positions [2]map[int]float64
	strings   map[int]string
}

// NewPendingUpdates returns empty pending maps.
func NewPendingUpdates() *PendingUpdates {
	p := &PendingUpdates{}
	p.reset()
	return p
}

func (p *PendingUpdates) reset() {
	p.bools = make(map[int]bool)
	p.doubles = make(map[int]float64)
	for i := range p.colors {
		p.colors[i] = make(map[int]float32)
	}
	for i := range p.positions {
		p.positions[i] = make(map[int]float64)
	}
	p.strings = make(map[int]string)
}

// SetBool queues a bool edit.
func (p *PendingUpdates) SetBool(index int, v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bools[index] = v
}

// SetDouble queues a double edit.
func (p *PendingUpdates) SetDouble(index int, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doubles[index] = v
}

// SetColorChannel queues an edit of one color channel. Unknown channels are
// ignored.
func (p *PendingUpdates) SetColorChannel(index int, ch Channel, v float32) {
	if !ch.Valid() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors[ch][index] = v
}

// SetPositionAxis queues an edit of one position coordinate. Unknown axes
// are ignored.
func (p *PendingUpdates) SetPositionAxis(index int, axis Axis, v float64) {
	if !axis.Valid() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[axis][index] = v
}

// SetString queues a string edit.
func (p *PendingUpdates) SetString(index int, v string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strings[index] = v
}

// Set queues a whole tagged value. Colors and positions queue every
// component.
func (p *PendingUpdates) Set(index int, v frei0r.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch v.Kind {
	case frei0r.ParamBool:
		p.bools[index] = v.Bool
	case frei0r.ParamDouble:
		p.doubles[index] = v.Double
	case frei0r.ParamColor:
		p.colors[ChannelR][index] = v.Color.R
		p.colors[ChannelG][index] = v.Color.G
		p.colors[ChannelB][index] = v.Color.B
	case frei0r.ParamPosition:
		p.positions[AxisX][index] = v.Position.X
		p.positions[AxisY][index] = v.Position.Y
	case frei0r.ParamString:
		p.strings[index] = v.Text
	}
}

// Len returns the number of queued edits.
func (p *PendingUpdates) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lenLocked()
}

func (p *PendingUpdates) lenLocked() int {
	n := len(p.bools) + len(p.doubles) + len(p.strings)
	for _, m := range p.colors {
		n += len(m)
	}
	for _, m := range p.positions {
		n += len(m)
	}
	return n
}

// Reset drops every queued edit.
func (p *PendingUpdates) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// Drain takes every queued edit and leaves the maps empty.
func (p *PendingUpdates) Drain() Batch {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := Batch{
		bools:     p.bools,
		doubles:   p.doubles,
		colors:    p.colors,
		positions: p.positions,
		strings:   p.strings,
	}
	p.reset()
	return b
}

// Batch is a drained set of edits, owned by the consumer.
type Batch struct {
	bools     map[int]bool
	doubles   map[int]float64
	colors    [3]map[int]float32
	positions [2]map[int]float64
	strings   map[int]string
}

// Len returns the number of edits in the batch.
func (b Batch) Len() int {
	n := len(b.bools) + len(b.doubles) + len(b.strings)
	for _, m := range b.colors {
		n += len(m)
	}
	for _, m := range b.positions {
		n += len(m)
	}
	return n
}

// Apply writes the batch through m: bools, doubles, colors, positions, then
// strings, each in ascending index order. Color and position edits are
// merged per index into a single read-modify-write.
func (b Batch) Apply(m Marshaller) {
	for _, i := range slices.Sorted(maps.Keys(b.bools)) {
		m.SetBool(i, b.bools[i])
	}
	for _, i := range slices.Sorted(maps.Keys(b.doubles)) {
		m.SetDouble(i, b.doubles[i])
	}

	colorIdx := make(map[int]struct{})
	for _, ch := range b.colors {
		for i := range ch {
			colorIdx[i] = struct{}{}
		}
	}
	for _, i := range slices.Sorted(maps.Keys(colorIdx)) {
		c := m.Color(i)
		if v, ok := b.colors[ChannelR][i]; ok {
			c.R = v
		}
		if v, ok := b.colors[ChannelG][i]; ok {
			c.G = v
		}
		if v, ok := b.colors[ChannelB][i]; ok {
			c.B = v
		}
		m.SetColor(i, c)
	}

	posIdx := make(map[int]struct{})
	for _, axis := range b.positions {
		for i := range axis {
			posIdx[i] = struct{}{}
		}
	}
	for _, i := range slices.Sorted(maps.Keys(posIdx)) {
		p := m.Position(i)
		if v, ok := b.positions[AxisX][i]; ok {
			p.X = v
		}
		if v, ok := b.positions[AxisY][i]; ok {
			p.Y = v
		}
		m.SetPosition(i, p)
	}

	for _, i := range slices.Sorted(maps.Keys(b.strings)) {
		m.SetString(i, b.strings[i])
	}
}
