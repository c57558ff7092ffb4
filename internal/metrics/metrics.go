// Package metrics exposes Prometheus counters for pipeline activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - jobtracker_messages_scanned_total{result} - new, or skipped_{dismissed,processed,pending}
//   - jobtracker_emails_processed_total{action} - created, updated, linked, merged, skipped, below_threshold
//   - jobtracker_transitions_total{source,outcome} - status engine decisions
//   - jobtracker_reminders_created_total - reminders created by idle detection
//   - jobtracker_store_conflicts_total - record transactions that hit a conflict
//   - jobtracker_batch_duration_seconds{op} - batch run latency
type Metrics struct {
	registry *prometheus.Registry

	MessagesScanned  *prometheus.CounterVec
	EmailsProcessed  *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	RemindersCreated prometheus.Counter
	StoreConflicts   prometheus.Counter
	BatchDuration    *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, so tests and
// multiple servers in one process never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		MessagesScanned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_messages_scanned_total",
			Help: "Mailbox messages seen by scan, by result",
		}, []string{"result"}),
		EmailsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_emails_processed_total",
			Help: "Email records handled by auto-process, by action",
		}, []string{"action"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_transitions_total",
			Help: "Status transition decisions, by source and outcome",
		}, []string{"source", "outcome"}),
		RemindersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "jobtracker_reminders_created_total",
			Help: "Reminders created by idle detection",
		}),
		StoreConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "jobtracker_store_conflicts_total",
			Help: "Record transactions that hit a store conflict",
		}),
		BatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobtracker_batch_duration_seconds",
			Help:    "Duration of batch runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"op"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Scanned(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MessagesScanned.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) Processed(action string) {
	if m == nil {
		return
	}
	m.EmailsProcessed.WithLabelValues(action).Inc()
}

func (m *Metrics) Transition(source, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ReminderCreated() {
	if m == nil {
		return
	}
	m.RemindersCreated.Inc()
}

func (m *Metrics) StoreConflict() {
	if m == nil {
		return
	}
	m.StoreConflicts.Inc()
}

// ObserveBatch records how long op ran since start.
func (m *Metrics) ObserveBatch(op string, start time.Time) {
	if m == nil {
		return
	}
	m.BatchDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
