// Package metrics exposes Prometheus counters and gauges for runs, alerts, and fetches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so several instances can coexist in tests.
// All methods are no-ops on a nil Recorder.
type Recorder struct {
	registry *prometheus.Registry

	snapshots        *prometheus.CounterVec
	alertsEmitted    prometheus.Counter
	alertsSuppressed prometheus.Counter
	fetchFailures    *prometheus.CounterVec
	learnRuns        *prometheus.CounterVec
	weights          *prometheus.GaugeVec
	tickerScores     *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		snapshots: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_snapshots_total",
				Help: "Total number of snapshots computed",
			},
			[]string{"reason"},
		),
		alertsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_alerts_emitted_total",
			Help: "Total number of intraday alerts emitted",
		}),
		alertsSuppressed: f.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_alerts_suppressed_total",
			Help: "Total number of alerts suppressed as repeats of the same level",
		}),
		fetchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_fetch_failures_total",
				Help: "Total number of external fetches that returned no data",
			},
			[]string{"kind"},
		),
		learnRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_learn_runs_total",
				Help: "Total number of weight learning runs by method",
			},
			[]string{"method"},
		),
		weights: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_weight",
				Help: "Current composite score weight per category",
			},
			[]string{"category"},
		),
		tickerScores: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_ticker_score",
				Help: "Latest composite score per ticker",
			},
			[]string{"ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_operation_duration_seconds",
				Help:    "Duration of snapshot, alert and learn runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) RecordSnapshot(reason string) {
	if r == nil {
		return
	}
	r.snapshots.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordAlert(emitted bool) {
	if r == nil {
		return
	}
	if emitted {
		r.alertsEmitted.Inc()
	} else {
		r.alertsSuppressed.Inc()
	}
}

func (r *Recorder) RecordFetchFailure(kind string) {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLearnRun(method string, weights map[string]float64) {
	if r == nil {
		return
	}
	r.learnRuns.WithLabelValues(method).Inc()
	r.SetWeights(weights)
}

func (r *Recorder) SetWeights(weights map[string]float64) {
	if r == nil {
		return
	}
	for category, w := range weights {
		r.weights.WithLabelValues(category).Set(w)
	}
}

func (r *Recorder) SetTickerScore(ticker string, score float64) {
	if r == nil {
		return
	}
	r.tickerScores.WithLabelValues(ticker).Set(score)
}

// ObserveDuration records the time elapsed since start for operation.
func (r *Recorder) ObserveDuration(operation string, start time.Time) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
