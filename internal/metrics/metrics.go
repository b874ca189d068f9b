package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/ohlcv-gatherer/internal/ensemble"
)

const namespace = "gatherer"

// Collector owns the gatherer's metrics and their registry.
type Collector struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	rows          *prometheus.CounterVec
	sentinels     *prometheus.CounterVec
	watermark     *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
	passDuration  prometheus.Histogram
	passSkipped   prometheus.Counter
	mirrorRows    *prometheus.CounterVec
}

// New creates a Collector on a fresh registry that also exports Go runtime
// and process metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Fetch cycles by instrument and outcome.",
		}, []string{"instrument", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_appended_total",
			Help:      "Sampled rows appended to the series store.",
		}, []string{"instrument"}),
		sentinels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentinels_total",
			Help:      "Sentinel rows appended for windows without data.",
		}, []string{"instrument"}),
		watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_seconds",
			Help:      "Maximum stored epoch per instrument.",
		}, []string{"instrument"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one fetch cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of one ensemble pass.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		passSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_skipped_total",
			Help:      "Instruments skipped or abandoned because a previous cycle was still running.",
		}),
		mirrorRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_rows_total",
			Help:      "Rows handled by the Postgres mirror by result.",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.cycles,
		c.rows,
		c.sentinels,
		c.watermark,
		c.cycleDuration,
		c.passDuration,
		c.passSkipped,
		c.mirrorRows,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// CycleDone implements ensemble.Observer.
func (c *Collector) CycleDone(o ensemble.Outcome) {
	inst := o.Instrument.String()
	c.cycles.WithLabelValues(inst, o.Status.String()).Inc()
	c.cycleDuration.Observe(o.Duration.Seconds())

	res := o.Result
	if res.Appended > 0 {
		c.rows.WithLabelValues(inst).Add(float64(res.Appended))
	}
	if res.Sentinels > 0 {
		c.sentinels.WithLabelValues(inst).Add(float64(res.Sentinels))
	}
	if res.HasWatermark {
		c.watermark.WithLabelValues(inst).Set(float64(res.Watermark))
	}
}

// PassDone implements ensemble.Observer.
func (c *Collector) PassDone(r ensemble.PassReport) {
	c.passDuration.Observe(r.Duration.Seconds())
	if n := r.Count(ensemble.StatusSkipped) + r.Count(ensemble.StatusAbandoned); n > 0 {
		c.passSkipped.Add(float64(n))
	}
}

// MirrorRows counts rows the mirror inserted, skipped or failed to write.
func (c *Collector) MirrorRows(result string, n int) {
	if n > 0 {
		c.mirrorRows.WithLabelValues(result).Add(float64(n))
	}
}
