// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package remote

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolution results recorded in metrics.
const (
	resultCached  = "cached"
	resultLoaded  = "loaded"
	resultFailed  = "failed"
	resultUnknown = "unknown"
)

// Metrics holds resolver metrics. A nil *Metrics records nothing.
type Metrics struct {
	Resolutions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

// NewMetrics creates and registers resolver metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfeshell_resolutions_total",
				Help: "Total number of plugin resolutions by plugin and result",
			},
			[]string{"plugin", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mfeshell_resolve_duration_seconds",
				Help:    "Time spent loading uncached plugins",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"plugin"},
		),
	}

	reg.MustRegister(m.Resolutions)
	reg.MustRegister(m.Duration)
	return m
}

func (m *Metrics) observe(plugin, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(plugin, result).Inc()
	if result == resultLoaded || result == resultFailed {
		m.Duration.WithLabelValues(plugin).Observe(d.Seconds())
	}
}
