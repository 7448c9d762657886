// Package metrics exposes Prometheus instrumentation for generation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spritegen/internal/infra"
)

// Collector records per-asset outcomes, stage latencies and poll activity.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	assetsTotal    *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	pollAttempts   prometheus.Histogram
	pixelsCleared  prometheus.Counter
	filesWritten   *prometheus.CounterVec
	runsInProgress prometheus.Gauge

	logger *infra.Logger
}

// NewCollector registers the collectors on a private registry under namespace.
func NewCollector(namespace string, logger *infra.Logger) *Collector {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	l := logger.With().Str("component", "metrics").Logger()

	return &Collector{
		registry: reg,
		assetsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assets_total",
				Help:      "Processed assets by outcome and error kind",
			},
			[]string{"outcome", "kind"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		pollAttempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_attempts",
				Help:      "Status polls issued per generation job",
				Buckets:   prometheus.LinearBuckets(1, 5, 10),
			},
		),
		pixelsCleared: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matte_pixels_cleared_total",
				Help:      "Pixels replaced by the transparent sentinel",
			},
		),
		filesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_written_total",
				Help:      "Destination writes by result",
			},
			[]string{"result"},
		),
		runsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "runs_in_progress",
				Help:      "Batch runs currently executing",
			},
		),
		logger: &l,
	}
}

// RecordAsset counts one finished asset.
func (c *Collector) RecordAsset(outcome, kind string) {
	if c == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	c.assetsTotal.WithLabelValues(outcome, kind).Inc()
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObservePollAttempts records the number of polls a job needed.
func (c *Collector) ObservePollAttempts(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.pollAttempts.Observe(float64(n))
}

func (c *Collector) AddCleared(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.pixelsCleared.Add(float64(n))
}

// RecordWrites counts successful and failed destination writes.
func (c *Collector) RecordWrites(ok, failed int) {
	if c == nil {
		return
	}
	if ok > 0 {
		c.filesWritten.WithLabelValues("ok").Add(float64(ok))
	}
	if failed > 0 {
		c.filesWritten.WithLabelValues("failed").Add(float64(failed))
	}
}

// RunStarted marks a run as in progress and returns the func that ends it.
func (c *Collector) RunStarted() func() {
	if c == nil {
		return func() {}
	}
	c.runsInProgress.Inc()
	return c.runsInProgress.Dec
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{c.logger},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

type promLogger struct{ l *infra.Logger }

func (p promLogger) Println(v ...interface{}) {
	p.l.Error().Msgf("%v", v)
}
