// Package metrics exposes Prometheus instrumentation for the license
// authority: validation traffic, seat admissions, and sweep activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus collectors. One instance is built
// at startup and shared by the handlers, ledger, and sweeper.
type Metrics struct {
	registry *prometheus.Registry

	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration prometheus.Histogram

	AdmissionsTotal  *prometheus.CounterVec
	RejectionsTotal  prometheus.Counter
	ReleasesTotal    *prometheus.CounterVec
	HeartbeatsTotal  prometheus.Counter
	SweepEvictions   prometheus.Counter
	SweepDuration    prometheus.Histogram
	ActiveSeats      *prometheus.GaugeVec
	SerializationErr prometheus.Counter
}

// New builds the collector set on a dedicated registry. A dedicated
// registry keeps the scrape surface to what the server deliberately
// exports, plus the standard Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		ValidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snowgate_validations_total",
			Help: "License validation requests by verdict.",
		}, []string{"verdict"}),
		ValidationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "snowgate_validation_duration_seconds",
			Help:    "Time spent handling a validation request.",
			Buckets: prometheus.DefBuckets,
		}),

		AdmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snowgate_admissions_total",
			Help: "Seat admissions by role and kind (fresh, reconnect).",
		}, []string{"role", "kind"}),
		RejectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "snowgate_rejections_total",
			Help: "Admissions refused because the seat budget was exhausted.",
		}),
		ReleasesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snowgate_releases_total",
			Help: "Seat releases by cause (disconnect, timeout).",
		}, []string{"cause"}),
		HeartbeatsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "snowgate_heartbeats_total",
			Help: "Heartbeat refreshes accepted.",
		}),
		SweepEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "snowgate_sweep_evictions_total",
			Help: "Connections evicted by the stale-heartbeat sweep.",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "snowgate_sweep_duration_seconds",
			Help:    "Duration of one sweep pass.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveSeats: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "snowgate_active_seats",
			Help: "Active seats currently held, by role.",
		}, []string{"role"}),
		SerializationErr: factory.NewCounter(prometheus.CounterOpts{
			Name: "snowgate_serialization_retries_exhausted_total",
			Help: "Admission transactions that exhausted their serialization retries.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
