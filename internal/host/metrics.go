// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package host

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for driver metrics.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultIdle    = "idle"
)

// Ticks counts driver ticks by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var Ticks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "frei0rhost_ticks_total",
		Help: "Total number of update cycles by result",
	},
	[]string{"result"},
)

// TickDuration is the histogram of update cycle duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var TickDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "frei0rhost_tick_duration_seconds",
		Help:    "Update cycle duration in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	},
)

// PluginLoads counts plugin switches by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var PluginLoads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "frei0rhost_plugin_loads_total",
		Help: "Total number of plugin loads by result",
	},
	[]string{"result"},
)

// InstanceConstructions counts plugin instances constructed.
// Use RegisterMetrics to register this with a Prometheus registry.
var InstanceConstructions = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "frei0rhost_instance_constructions_total",
		Help: "Total number of plugin instances constructed",
	},
)

// RegisterMetrics registers driver metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Ticks)
	reg.MustRegister(TickDuration)
	reg.MustRegister(PluginLoads)
	reg.MustRegister(InstanceConstructions)
}

// recordTick records the outcome and duration of one tick.
func recordTick(result string, duration time.Duration) {
	Ticks.WithLabelValues(result).Inc()
	TickDuration.Observe(duration.Seconds())
}
