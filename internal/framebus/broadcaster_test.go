// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBroadcaster_Subscribe(t *testing.T) {
	bc := NewBroadcaster(0)

	ch := bc.Subscribe("out")
	if ch == nil {
		t.Fatal("Expected channel")
	}

	bc.Publish(context.Background(), Frame{Topic: "out", Width: 1, Height: 1, Data: make([]byte, 4)})

	select {
	case received := <-ch:
		if received.ID.IsZero() {
			t.Error("Frame ID not assigned")
		}
		if received.Seq != 1 {
			t.Errorf("Seq = %d, want 1", received.Seq)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for frame")
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	bc := NewBroadcaster(0)

	ch := bc.Subscribe("out")
	bc.Unsubscribe("out", ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Channel should be closed immediately")
	}

	// Unknown channels are ignored.
	bc.Unsubscribe("out", make(chan Frame))
}

func TestBroadcaster_TopicsAreIsolated(t *testing.T) {
	bc := NewBroadcaster(0)
	a := bc.Subscribe("a")
	b := bc.Subscribe("b")

	bc.Publish(context.Background(), Frame{Topic: "a"})
	bc.Publish(context.Background(), Frame{Topic: "a"})
	bc.Publish(context.Background(), Frame{Topic: "b"})

	require.Len(t, a, 2)
	require.Len(t, b, 1)
	assert.Equal(t, uint64(1), (<-a).Seq)
	assert.Equal(t, uint64(2), (<-a).Seq)
	assert.Equal(t, uint64(1), (<-b).Seq, "sequence numbers are per topic")
	assert.Equal(t, []string{"a", "b"}, bc.Topics())
}

func TestBroadcaster_Latest(t *testing.T) {
	bc := NewBroadcaster(0)
	_, ok := bc.Latest("out")
	assert.False(t, ok)

	id := NewID()
	bc.Publish(context.Background(), Frame{ID: id, Topic: "out", Width: 8})
	latest, ok := bc.Latest("out")
	require.True(t, ok)
	assert.Equal(t, id, latest.ID, "existing IDs are kept")
	assert.Equal(t, 8, latest.Width)
}

func TestBroadcaster_DropsWhenSubscriberFull(t *testing.T) {
	bc := NewBroadcaster(1)
	slow := bc.Subscribe("drop-test")
	fast := bc.Subscribe("drop-test")

	before := testutil.ToFloat64(FramesDropped.WithLabelValues("drop-test"))
	bc.Publish(context.Background(), Frame{Topic: "drop-test"})
	<-fast
	bc.Publish(context.Background(), Frame{Topic: "drop-test"})

	assert.InDelta(t, before+1, testutil.ToFloat64(FramesDropped.WithLabelValues("drop-test")), 0)
	assert.Equal(t, uint64(1), (<-slow).Seq, "the slow subscriber keeps the first frame")
	assert.Equal(t, uint64(2), (<-fast).Seq)
}

func TestBroadcaster_ConcurrentSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	bc := NewBroadcaster(64)
	const subscribers, frames = 4, 20

	var wg sync.WaitGroup
	counts := make([]int, subscribers)
	chans := make([]chan Frame, subscribers)
	for i := range chans {
		chans[i] = bc.Subscribe("out")
	}
	for i, ch := range chans {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range ch {
				counts[i]++
			}
		}()
	}

	for range frames {
		bc.Publish(context.Background(), Frame{Topic: "out"})
	}
	for _, ch := range chans {
		bc.Unsubscribe("out", ch)
	}
	wg.Wait()

	for i, n := range counts {
		assert.Equal(t, frames, n, "subscriber %d", i)
	}
}
