// Package metrics holds the prometheus collectors for runs, the rewriter, decisions and events
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taps"

// Metrics groups every collector the process exports
type Metrics struct {
	Utterances  *prometheus.CounterVec
	Spans       *prometheus.CounterVec
	Buckets     *prometheus.CounterVec
	Decisions   *prometheus.CounterVec
	Aggregates  *prometheus.CounterVec
	OverlapSkip prometheus.Counter
	InFlight    prometheus.Gauge
	RunDuration prometheus.Histogram

	RewriterLatency *prometheus.HistogramVec
	RewriterErrors  *prometheus.CounterVec

	Resolutions *prometheus.CounterVec

	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec
}

// Default is registered on the global registry and served on /metrics
var Default = New(prometheus.DefaultRegisterer)

// New registers a fresh set of collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Utterances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Utterances processed by outcome status",
		}, []string{"status"}),
		Spans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spans_detected_total",
			Help:      "Risk spans detected by tag",
		}, []string{"tag"}),
		Buckets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triage_bucket_total",
			Help:      "Utterances assigned to each triage bucket",
		}, []string{"bucket"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Span decisions by tag, action and reason",
		}, []string{"tag", "action", "reason"}),
		Aggregates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_total",
			Help:      "Utterance level aggregate outcomes",
		}, []string{"outcome"}),
		OverlapSkip: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlap_skipped_total",
			Help:      "Edits skipped because they overlapped an applied edit",
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "utterances_in_flight",
			Help:      "Utterances currently held by a worker",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a batch run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800},
		}),
		RewriterLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rewriter_latency_seconds",
			Help:      "Rewriter call latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"adapter", "kind"}),
		RewriterErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewriter_errors_total",
			Help:      "Rewriter calls that produced no usable candidates",
		}, []string{"adapter", "kind"}),
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_recorded_total",
			Help:      "Resolution records appended by resolver",
		}, []string{"resolver"}),
		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Kafka messages published",
		}, []string{"topic"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Kafka publish failures",
		}, []string{"topic"}),
		PublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordRewrite records one rewriter call
func (m *Metrics) RecordRewrite(adapter, kind string, err error, elapsed time.Duration) {
	m.RewriterLatency.WithLabelValues(adapter, kind).Observe(elapsed.Seconds())
	if err != nil {
		m.RewriterErrors.WithLabelValues(adapter, kind).Inc()
	}
}

// RecordDecision records one span verdict
func (m *Metrics) RecordDecision(tag, action, reason string) {
	m.Decisions.WithLabelValues(tag, action, reason).Inc()
}

// RecordPublish records one kafka write
func (m *Metrics) RecordPublish(topic string, err error, elapsed time.Duration) {
	m.PublishTotal.WithLabelValues(topic).Inc()
	m.PublishLatency.WithLabelValues(topic).Observe(elapsed.Seconds())
	if err != nil {
		m.PublishErrors.WithLabelValues(topic).Inc()
	}
}
