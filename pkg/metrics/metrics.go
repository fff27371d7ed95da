// Package metrics collects batch processing counters in a private
// Prometheus registry. There is no HTTP endpoint; a batch run writes the
// registry once to a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Config names the metrics.
type Config struct {
	Namespace string    `mapstructure:"namespace"`
	Subsystem string    `mapstructure:"subsystem"`
	Buckets   []float64 `mapstructure:"buckets"`
}

// DefaultConfig returns the names used by ediproc.
func DefaultConfig() Config {
	return Config{
		Namespace: "ediproc",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// Collector records per-file and per-set outcomes. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	files           *prometheus.CounterVec
	fileDuration    prometheus.Histogram
	sets            *prometheus.CounterVec
	interpretations *prometheus.CounterVec
	flags           *prometheus.CounterVec
	discrepancies   prometheus.Counter
	lastRun         prometheus.Gauge
}

// New creates a collector with its own registry.
func New(config Config) *Collector {
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.files = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "files_total",
		Help:      "Files processed, by outcome.",
	}, []string{"outcome"})

	c.fileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "file_duration_seconds",
		Help:      "Time spent processing one file.",
		Buckets:   config.Buckets,
	})

	c.sets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "transaction_sets_total",
		Help:      "Transaction sets acknowledged, by AK5 status.",
	}, []string{"status"})

	c.interpretations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "interpretations_total",
		Help:      "Amount interpretations selected, by interpretation.",
	}, []string{"interpretation"})

	c.flags = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "flags_total",
		Help:      "Transaction sets carrying each flag.",
	}, []string{"flag"})

	c.discrepancies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "discrepancies_total",
		Help:      "Reconciliation discrepancies reported.",
	})

	c.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last batch finished.",
	})

	c.registry.MustRegister(c.files, c.fileDuration, c.sets, c.interpretations,
		c.flags, c.discrepancies, c.lastRun)
	return c
}

// ObserveFile records one processed file.
func (c *Collector) ObserveFile(failed bool, d time.Duration) {
	if c == nil {
		return
	}
	outcome := "processed"
	if failed {
		outcome = "failed"
	}
	c.files.WithLabelValues(outcome).Inc()
	c.fileDuration.Observe(d.Seconds())
}

// ObserveSet records one acknowledged transaction set.
func (c *Collector) ObserveSet(status, interpretation string, flags []string, discrepancies int) {
	if c == nil {
		return
	}
	c.sets.WithLabelValues(status).Inc()
	if interpretation != "" {
		c.interpretations.WithLabelValues(interpretation).Inc()
	}
	for _, f := range flags {
		c.flags.WithLabelValues(f).Inc()
	}
	c.discrepancies.Add(float64(discrepancies))
}

// MarkRun stamps the completion time of a batch.
func (c *Collector) MarkRun(at time.Time) {
	if c == nil {
		return
	}
	c.lastRun.Set(float64(at.Unix()))
}

// Gather returns the current metric families.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	return c.registry.Gather()
}

// WriteTextfile writes the registry in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
