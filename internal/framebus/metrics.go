// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import "github.com/prometheus/client_golang/prometheus"

// FramesPublished counts frames accepted by a broadcaster, per topic.
// Use RegisterMetrics to register this with a Prometheus registry.
var FramesPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "frei0rhost_frames_published_total",
		Help: "Total number of frames published on the frame bus",
	},
	[]string{"topic"},
)

// FramesDropped counts frames a subscriber missed because its buffer was full.
// Use RegisterMetrics to register this with a Prometheus registry.
var FramesDropped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "frei0rhost_frames_dropped_total",
		Help: "Total number of frames dropped for slow subscribers",
	},
	[]string{"topic"},
)

// RegisterMetrics registers frame bus metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(FramesPublished)
	reg.MustRegister(FramesDropped)
}
