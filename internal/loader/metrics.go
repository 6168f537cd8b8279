// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package loader

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/decouple-mfe/mfeshell/pkg/errutil"
)

// Metrics holds controller metrics. A nil *Metrics records nothing.
type Metrics struct {
	Mounts    *prometheus.CounterVec
	Unmounts  *prometheus.CounterVec
	Discarded *prometheus.CounterVec
	Failures  *prometheus.CounterVec
	Mounted   *prometheus.GaugeVec
}

// NewMetrics creates and registers controller metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfeshell_mounts_total",
				Help: "Total number of successful plugin mounts",
			},
			[]string{"plugin"},
		),
		Unmounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfeshell_unmounts_total",
				Help: "Total number of plugin unmounts",
			},
			[]string{"plugin"},
		),
		Discarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfeshell_discarded_loads_total",
				Help: "Total number of loads discarded because a newer activation superseded them",
			},
			[]string{"plugin"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfeshell_load_failures_total",
				Help: "Total number of failed activations by plugin and error code",
			},
			[]string{"plugin", "code"},
		),
		Mounted: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mfeshell_mounted",
				Help: "Whether a plugin is currently mounted (1) or not (0)",
			},
			[]string{"plugin"},
		),
	}

	reg.MustRegister(m.Mounts, m.Unmounts, m.Discarded, m.Failures, m.Mounted)
	return m
}

func (m *Metrics) mounted(plugin string) {
	if m == nil {
		return
	}
	m.Mounts.WithLabelValues(plugin).Inc()
	m.Mounted.WithLabelValues(plugin).Set(1)
}

func (m *Metrics) unmounted(plugin string) {
	if m == nil {
		return
	}
	m.Unmounts.WithLabelValues(plugin).Inc()
	m.Mounted.WithLabelValues(plugin).Set(0)
}

func (m *Metrics) discarded(plugin string) {
	if m == nil {
		return
	}
	m.Discarded.WithLabelValues(plugin).Inc()
}

func (m *Metrics) failed(plugin string, err error) {
	if m == nil {
		return
	}
	code := errutil.Code(err)
	if code == "" {
		code = "UNKNOWN"
	}
	m.Failures.WithLabelValues(plugin, code).Inc()
}
