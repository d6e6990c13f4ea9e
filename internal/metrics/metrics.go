// Package metrics registers the Prometheus metrics of the statistics store
// and the sequence analysis services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup tiers of the statistics store
const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
	TierComputed   = "computed"
)

var (
	TableLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinsleuth",
		Name:      "table_lookups_total",
		Help:      "Statistics table lookups by the tier that served them.",
	}, []string{"tier"})

	TableBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "coinsleuth",
		Name:      "table_build_seconds",
		Help:      "Time spent enumerating partitions and computing one statistics table.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
	})

	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinsleuth",
		Name:      "storage_errors_total",
		Help:      "Persistent store failures by operation.",
	}, []string{"op"})

	SequencesAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinsleuth",
		Name:      "sequences_analyzed_total",
		Help:      "Sequences mapped to their run-length partition row.",
	})

	SamplesTested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinsleuth",
		Name:      "samples_tested_total",
		Help:      "Samples tested against their population summary.",
	})
)

// RecordLookup counts one table lookup served by tier
func RecordLookup(tier string) {
	TableLookups.WithLabelValues(tier).Inc()
}

// ObserveBuild records the duration of one table build started at start
func ObserveBuild(start time.Time) {
	TableBuildDuration.Observe(time.Since(start).Seconds())
}

// RecordStorageError counts one failed persistent store operation
func RecordStorageError(op string) {
	StorageErrors.WithLabelValues(op).Inc()
}
