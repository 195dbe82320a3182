// Package metrics exposes Prometheus instrumentation for simulator runs.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the simulator updates during a run.
type Metrics struct {
	registry *prometheus.Registry

	PoolsNormalized  prometheus.Counter
	PoolsRejected    *prometheus.CounterVec
	ReserveSource    *prometheus.CounterVec
	TriplesSimulated prometheus.Counter
	TriplesDiscarded *prometheus.CounterVec
	CyclesEmitted    prometheus.Counter
	CyclesPassing    prometheus.Counter
	ErrorsByKind     *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec
	OracleBatches    prometheus.Counter
	OracleMissing    prometheus.Counter
}

// New creates a Metrics set on a fresh registry.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": service}

	return &Metrics{
		registry: reg,
		PoolsNormalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "triarb_pools_normalized_total", Help: "Pools accepted by the normalizer.", ConstLabels: labels,
		}),
		PoolsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triarb_pools_rejected_total", Help: "Pools rejected, by error code.", ConstLabels: labels,
		}, []string{"code"}),
		ReserveSource: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triarb_reserve_source_total", Help: "Enriched pools by reserve source.", ConstLabels: labels,
		}, []string{"source"}),
		TriplesSimulated: factory.NewCounter(prometheus.CounterOpts{
			Name: "triarb_triples_simulated_total", Help: "Three-leg cycles simulated.", ConstLabels: labels,
		}),
		TriplesDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triarb_triples_discarded_total", Help: "Cycles discarded, by reason.", ConstLabels: labels,
		}, []string{"reason"}),
		CyclesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "triarb_cycles_emitted_total", Help: "Cycle results emitted.", ConstLabels: labels,
		}),
		CyclesPassing: factory.NewCounter(prometheus.CounterOpts{
			Name: "triarb_cycles_passing_total", Help: "Cycles meeting the profit threshold.", ConstLabels: labels,
		}),
		ErrorsByKind: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triarb_errors_total", Help: "Errors encountered, by code.", ConstLabels: labels,
		}, []string{"code"}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "triarb_phase_duration_seconds", Help: "Wall time per run phase.", ConstLabels: labels,
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		OracleBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "triarb_oracle_batches_total", Help: "Reserve oracle batch requests issued.", ConstLabels: labels,
		}),
		OracleMissing: factory.NewCounter(prometheus.CounterOpts{
			Name: "triarb_oracle_missing_total", Help: "Vault addresses with no decodable balance.", ConstLabels: labels,
		}),
	}
}

// ObservePhase records the duration of a named run phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a blocking HTTP server exposing /metrics on the given port.
func (m *Metrics) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
