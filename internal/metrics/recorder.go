package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Computation outcomes.
const (
	OutcomeCacheHit      = "cache_hit"
	OutcomeComputed      = "computed"
	OutcomeNotComputable = "not_computable"
)

// Recorder exports engine activity as Prometheus metrics.
type Recorder struct {
	computations *prometheus.CounterVec
	persisted    *prometheus.CounterVec
	backfills    *prometheus.CounterVec
	previews     *prometheus.CounterVec
	lastValue    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		computations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ucs_computations_total",
				Help: "Asset computations by outcome",
			},
			[]string{"asset", "outcome"},
		),
		persisted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ucs_quotes_persisted_total",
				Help: "Quotes written by the engine",
			},
			[]string{"asset"},
		),
		backfills: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ucs_change_backfills_total",
				Help: "Stored quotes whose daily change was patched",
			},
			[]string{"asset"},
		),
		previews: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ucs_previews_total",
				Help: "Impact previews served, by edited asset",
			},
			[]string{"asset"},
		),
		lastValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ucs_last_value",
				Help: "Last computed close for an asset",
			},
			[]string{"asset"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ucs_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordComputation counts one resolution of asset with the given outcome.
func (r *Recorder) RecordComputation(asset, outcome string) {
	r.computations.WithLabelValues(asset, outcome).Inc()
}

// RecordPersisted counts a quote written for asset.
func (r *Recorder) RecordPersisted(asset string) {
	r.persisted.WithLabelValues(asset).Inc()
}

// RecordBackfill counts a changePct patch for asset.
func (r *Recorder) RecordBackfill(asset string) {
	r.backfills.WithLabelValues(asset).Inc()
}

// RecordPreview counts an impact preview for the edited asset.
func (r *Recorder) RecordPreview(asset string) {
	r.previews.WithLabelValues(asset).Inc()
}

// RecordLastValue records the last computed close for asset.
func (r *Recorder) RecordLastValue(asset string, value float64) {
	r.lastValue.WithLabelValues(asset).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
