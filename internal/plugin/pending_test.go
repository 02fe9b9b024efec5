// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package plugin_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
)

func TestPendingUpdates_MapSemantics(t *testing.T) {
	p := plugin.NewPendingUpdates()
	p.SetBool(0, false)
	p.SetBool(0, true)
	p.SetDouble(1, 0.2)
	p.SetColorChannel(2, plugin.ChannelR, 0.5)
	p.SetColorChannel(2, plugin.ChannelR, 0.6)
	p.SetColorChannel(2, plugin.ChannelB, 0.7)
	p.SetPositionAxis(3, plugin.AxisX, 0.1)
	p.SetString(4, "a")
	p.SetString(4, "b")

	// One entry per (kind, component, index).
	assert.Equal(t, 6, p.Len())

	batch := p.Drain()
	assert.Equal(t, 6, batch.Len())
	assert.Zero(t, p.Len(), "drain empties the maps")
	assert.Zero(t, p.Drain().Len())
}

func TestPendingUpdates_IgnoresUnknownComponents(t *testing.T) {
	p := plugin.NewPendingUpdates()
	assert.NotPanics(t, func() {
		p.SetColorChannel(2, plugin.Channel(3), 1)
		p.SetPositionAxis(3, plugin.Axis(-1), 1)
	})
	assert.Zero(t, p.Len())
}

func TestPendingUpdates_SetWholeValue(t *testing.T) {
	p := plugin.NewPendingUpdates()
	p.Set(2, frei0r.ColorValue(frei0r.Color{R: 1, G: 0.5, B: 0}))
	p.Set(3, frei0r.PositionValue(frei0r.Position{X: 0.25, Y: 0.75}))
	p.Set(0, frei0r.BoolValue(true))
	assert.Equal(t, 6, p.Len())
}

func TestPendingUpdates_Reset(t *testing.T) {
	p := plugin.NewPendingUpdates()
	p.SetDouble(1, 0.2)
	p.Reset()
	assert.Zero(t, p.Len())
}

func TestPendingUpdates_ConcurrentProducers(t *testing.T) {
	p := plugin.NewPendingUpdates()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p.SetDouble(i%10, float64(g))
				p.SetColorChannel(i%3, plugin.ChannelG, float32(i))
			}
		}(g)
	}

	drained := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			drained += p.Drain().Len()
		}
	}()

	wg.Wait()
	<-done
	drained += p.Drain().Len()
	require.Positive(t, drained)
	assert.LessOrEqual(t, drained, 8*100*2)
	assert.Zero(t, p.Len())
}
