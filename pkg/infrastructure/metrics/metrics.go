// Package metrics exposes adjustment run metrics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vsinha/rebalance/pkg/application/dto"
	"github.com/vsinha/rebalance/pkg/domain/entities"
)

const namespace = "rebalance"

// Recorder turns finished runs into Prometheus series
type Recorder struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	acceptedQty *prometheus.CounterVec
	violations  *prometheus.CounterVec
	duration    prometheus.Histogram
	achievement prometheus.Histogram
}

// NewRecorder registers the run metrics on a fresh registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Adjustment runs by status and planning strategy.",
		}, []string{"status", "strategy"}),
		acceptedQty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accepted_quantity_total",
			Help:      "Units moved by accepted moves, by destination line.",
		}, []string{"line"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_entries_total",
			Help:      "Validator log entries by severity.",
		}, []string{"severity"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one adjustment run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		achievement: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "achievement_rate",
			Help:      "Achieved share of the needed reduction for runs that needed one.",
			Buckets:   []float64{0, 0.25, 0.5, 0.75, 0.9, 1},
		}),
	}
	r.registry.MustRegister(r.runs, r.acceptedQty, r.violations, r.duration, r.achievement)
	return r
}

// ObserveRun records one finished result
func (r *Recorder) ObserveRun(result *dto.AdjustmentResult) {
	if result == nil {
		return
	}
	strategy := result.Strategy
	if strategy == "" {
		strategy = "none"
	}
	r.runs.WithLabelValues(string(result.Status), strategy).Inc()

	for _, mv := range result.Outcome.Accepted {
		r.acceptedQty.WithLabelValues(string(mv.To.Line)).Add(float64(mv.Qty))
	}
	for _, severity := range []entities.Severity{entities.SeverityAdjusted, entities.SeverityHard, entities.SeverityWarning} {
		if n := result.Outcome.CountBySeverity(severity); n > 0 {
			r.violations.WithLabelValues(severity.String()).Add(float64(n))
		}
	}

	r.duration.Observe(result.Duration.Seconds())
	if result.Metrics.NeedQty > 0 {
		rate, _ := result.Metrics.AchievementRate.Float64()
		r.achievement.Observe(rate)
	}
}

// Registry returns the registry holding the run metrics
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
