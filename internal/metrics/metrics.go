// Package metrics exposes Prometheus instrumentation for standup cycles.
//
// Every Metrics value owns its registry, so tests and multiple drivers in one
// process never collide. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sprintswarm"

// Item outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
)

// Metrics holds the standup collectors.
type Metrics struct {
	registry *prometheus.Registry

	// ItemsTotal counts work items by outcome (processed, failed).
	ItemsTotal *prometheus.CounterVec

	// DecisionsTotal counts emitted change requests by routing decision.
	DecisionsTotal *prometheus.CounterVec

	// FailuresTotal counts failed items and tasks by failure kind.
	FailuresTotal *prometheus.CounterVec

	TaskDuration  prometheus.Histogram
	CycleDuration prometheus.Histogram

	// QueueDepth is the number of items left per backlog namespace.
	QueueDepth *prometheus.GaugeVec

	// IndexedFunctions counts functions upserted into the code corpus.
	IndexedFunctions prometheus.Counter
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "standup",
			Name:      "items_total",
			Help:      "Work items handled by the standup driver.",
		}, []string{"outcome"}),
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "standup",
			Name:      "decisions_total",
			Help:      "Change requests emitted, by routing decision.",
		}, []string{"decision"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "standup",
			Name:      "failures_total",
			Help:      "Item and task failures, by kind.",
		}, []string{"kind"}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "standup",
			Name:      "task_duration_seconds",
			Help:      "Time to route and emit one task.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "standup",
			Name:      "cycle_duration_seconds",
			Help:      "Time to drain the sprint backlog.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backlog",
			Name:      "depth",
			Help:      "Items waiting in a backlog.",
		}, []string{"namespace"}),
		IndexedFunctions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codebase",
			Name:      "indexed_functions_total",
			Help:      "Functions summarized and upserted into the code corpus.",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordItem(ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeProcessed
	if !ok {
		outcome = OutcomeFailed
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordFailure(kind string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTask(d time.Duration) {
	if m == nil {
		return
	}
	m.TaskDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(ns string, n int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(ns).Set(float64(n))
}

func (m *Metrics) AddIndexed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IndexedFunctions.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve metrics on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		<-errCh
		return nil
	}
}
