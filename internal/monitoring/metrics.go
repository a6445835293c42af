package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the speller pipeline. All
// counters are best-effort observability; nothing in the pipeline depends
// on them.
type Metrics struct {
	SamplesPushed    prometheus.Counter
	MarkersRecorded  prometheus.Counter
	MarkersDropped   prometheus.Counter
	EpochsExtracted  prometheus.Counter
	EpochsSkipped    prometheus.Counter
	TrainingRuns     prometheus.Counter
	TrainingFailures prometheus.Counter
	TrainingSeconds  prometheus.Histogram
	Classifications  prometheus.Counter
	ClassifyLatency  prometheus.Histogram
}

// NewMetrics builds and registers the pipeline collectors on reg. Pass a
// fresh registry in tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speller", Name: "samples_pushed_total",
			Help: "Samples ingested into the ring buffer.",
		}),
		MarkersRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speller", Name: "markers_recorded_total",
			Help: "Flash markers aligned and recorded.",
		}),
		MarkersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speller", Name: "markers_dropped_total",
			Help: "Flash markers dropped before clock alignment.",
		}),
		EpochsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speller", Name: "epochs_extracted_total",
			Help: "Epochs successfully extracted from the ring buffer.",
		}),
		EpochsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speller", Name: "epochs_skipped_total",
			Help: "Epochs skipped because the sample window was unavailable.",
		}),
		TrainingRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speller", Name: "training_runs_total",
			Help: "Completed LDA training runs.",
		}),
		TrainingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speller", Name: "training_failures_total",
			Help: "Training runs rejected for insufficient data.",
		}),
		TrainingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "speller", Name: "training_duration_seconds",
			Help:    "Wall time of LDA training including cross-validation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		Classifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speller", Name: "classifications_total",
			Help: "Completed trial classifications.",
		}),
		ClassifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "speller", Name: "classify_latency_seconds",
			Help:    "Wall time spent scoring one trial.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SamplesPushed, m.MarkersRecorded, m.MarkersDropped,
			m.EpochsExtracted, m.EpochsSkipped,
			m.TrainingRuns, m.TrainingFailures, m.TrainingSeconds,
			m.Classifications, m.ClassifyLatency,
		)
	}
	return m
}

// NopMetrics returns unregistered collectors for callers that do not care
// about scrape output (tests, tools).
func NopMetrics() *Metrics { return NewMetrics(nil) }
