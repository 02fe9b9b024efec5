// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 8

// Broadcaster distributes frames to subscribers by topic. It stamps each
// frame with a per-topic sequence number and keeps the latest frame of every
// topic for late subscribers.
type Broadcaster struct {
	buffer int

	mu     sync.RWMutex
	subs   map[string][]chan Frame
	seq    map[string]uint64
	latest map[string]Frame
}

// NewBroadcaster creates a broadcaster whose subscribers buffer up to
// buffer frames. A non-positive buffer selects DefaultBuffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster{
		buffer: buffer,
		subs:   make(map[string][]chan Frame),
		seq:    make(map[string]uint64),
		latest: make(map[string]Frame),
	}
}

// Compile-time interface check.
var _ Publisher = (*Broadcaster)(nil)

// Subscribe creates a channel receiving every later frame on topic.
func (b *Broadcaster) Subscribe(topic string) chan Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Frame, b.buffer)
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Unsubscribe removes a channel from a topic and closes it.
func (b *Broadcaster) Unsubscribe(topic string, ch chan Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, sub := range subs {
		if sub == ch {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish implements Publisher. Missing IDs and timestamps are filled in.
// A subscriber whose buffer is full misses the frame.
func (b *Broadcaster) Publish(_ context.Context, f Frame) {
	b.publish(f)
}

// publish delivers f and returns it as stamped.
func (b *Broadcaster) publish(f Frame) Frame {
	if f.ID.IsZero() {
		f.ID = NewID()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.seq[f.Topic]++
	f.Seq = b.seq[f.Topic]
	b.latest[f.Topic] = f
	b.mu.Unlock()

	FramesPublished.WithLabelValues(f.Topic).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[f.Topic] {
		select {
		case ch <- f:
		default:
			FramesDropped.WithLabelValues(f.Topic).Inc()
			slog.Debug("frame dropped: subscriber buffer full",
				"topic", f.Topic,
				"frame_id", f.ID.String(),
				"seq", f.Seq,
			)
		}
	}
	return f
}

// Latest returns the most recent frame published on topic.
func (b *Broadcaster) Latest(topic string) (Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	f, ok := b.latest[topic]
	return f, ok
}

// Topics lists every topic that has seen a frame, sorted.
func (b *Broadcaster) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	topics := make([]string, 0, len(b.latest))
	for t := range b.latest {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}
