// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsConsumedTotal tracks scraped records read from Kafka by outcome
	RecordsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "consumer",
			Name:      "records_total",
			Help:      "Total number of scraped event records consumed by status",
		},
		[]string{"source", "status"},
	)

	// BatchesTotal tracks resolved batches by outcome
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "processor",
			Name:      "batches_total",
			Help:      "Total number of record batches processed by status",
		},
		[]string{"status"},
	)

	// BatchSize tracks how many records each flushed batch held
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "processor",
			Name:      "batch_size",
			Help:      "Number of records per flushed batch",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	// ResolveDuration tracks the time spent finding and merging duplicates per batch
	ResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "processor",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of duplicate resolution per batch in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// DuplicateMatchesTotal tracks duplicate edges by clustering outcome
	DuplicateMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "duplicate_matches_total",
			Help:      "Total number of duplicate matches found by clustering outcome",
		},
		[]string{"outcome"},
	)

	// CanonicalEventsTotal tracks canonical events by whether they were published
	CanonicalEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merging",
			Name:      "canonical_events_total",
			Help:      "Total number of canonical events produced by status",
		},
		[]string{"status"},
	)

	// SnapshotRecords tracks how many records are remembered for cross-batch resolution
	SnapshotRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "processor",
			Name:      "snapshot_records",
			Help:      "Number of records remembered for resolving later batches",
		},
	)

	// KafkaPublishDuration tracks Kafka publish latency
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka batch publishes in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
)

// RecordConsumed records a consumed record metric
func RecordConsumed(source, status string) {
	RecordsConsumedTotal.WithLabelValues(source, status).Inc()
}

// RecordBatch records a processed batch metric
func RecordBatch(status string, size int, resolveSeconds float64) {
	BatchesTotal.WithLabelValues(status).Inc()
	BatchSize.Observe(float64(size))
	if resolveSeconds > 0 {
		ResolveDuration.Observe(resolveSeconds)
	}
}

// RecordMatches records duplicate match outcomes for a batch
func RecordMatches(accepted, rejected int) {
	DuplicateMatchesTotal.WithLabelValues("accepted").Add(float64(accepted))
	DuplicateMatchesTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// RecordCanonical records canonical event publish decisions for a batch
func RecordCanonical(published, unchanged, superseded int) {
	CanonicalEventsTotal.WithLabelValues("published").Add(float64(published))
	CanonicalEventsTotal.WithLabelValues("unchanged").Add(float64(unchanged))
	CanonicalEventsTotal.WithLabelValues("superseded").Add(float64(superseded))
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(durationSeconds float64) {
	KafkaPublishDuration.Observe(durationSeconds)
}
