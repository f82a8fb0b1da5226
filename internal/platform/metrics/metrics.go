// Package metrics exposes Prometheus metrics for review activity.
//
// A Recorder subscribes to the repetition engine's events and owns a private
// registry, so tests and multiple servers in one process never collide on
// the global default registry.
package metrics

import (
	"context"
	"net/http"

	"github.com/lingolab/vocab-srs/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vocab_srs"

// Verify interface compliance at compile time
var _ events.EventHandler = (*Recorder)(nil)

// Recorder turns review events into Prometheus metrics.
type Recorder struct {
	registry *prometheus.Registry

	recordsCreated  prometheus.Counter
	reviewsApplied  *prometheus.CounterVec
	reviewConflicts prometheus.Counter
	intervalDays    prometheus.Histogram
	dueRecords      prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry. Go runtime and
// process collectors are registered alongside the review metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		recordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_created_total",
			Help:      "Review records created.",
		}),
		reviewsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_applied_total",
			Help:      "Review outcomes applied, by outcome and resulting status.",
		}, []string{"outcome", "status"}),
		reviewConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_conflicts_total",
			Help:      "Conditional updates that lost a race to a concurrent writer.",
		}),
		intervalDays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "interval_days",
			Help:      "Intervals scheduled by applied reviews, in days.",
			Buckets:   []float64{1, 2, 4, 8, 16, 30, 60, 120, 240, 365},
		}),
		dueRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "due_records",
			Help:      "Review records due across all users at the last reminder run.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.recordsCreated,
		r.reviewsApplied,
		r.reviewConflicts,
		r.intervalDays,
		r.dueRecords,
	)
	return r
}

// HandleEvent implements events.EventHandler. Unknown event types are ignored.
func (r *Recorder) HandleEvent(_ context.Context, event *events.ReviewEvent) error {
	switch event.Type {
	case events.TypeRecordCreated:
		r.recordsCreated.Inc()
	case events.TypeReviewApplied:
		r.reviewsApplied.WithLabelValues(string(event.Outcome), string(event.Status)).Inc()
		r.intervalDays.Observe(float64(event.NewIntervalDays))
	case events.TypeReviewConflict:
		r.reviewConflicts.Inc()
	}
	return nil
}

// SetDueRecords records the total number of due records.
func (r *Recorder) SetDueRecords(n int) {
	r.dueRecords.Set(float64(n))
}

// Registry returns the registry the Recorder's metrics live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
