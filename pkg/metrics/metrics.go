// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks name resolutions by source and match type
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of name resolutions by source and match type",
		},
		[]string{"source", "match_type"},
	)

	// AmbiguousResolutionsTotal tracks resolutions refused due to ambiguity
	AmbiguousResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "resolver",
			Name:      "ambiguous_total",
			Help:      "Total number of resolutions refused because the top candidates were too close",
		},
		[]string{"source"},
	)

	// UnresolvedRegisteredTotal tracks new review-queue entries
	UnresolvedRegisteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "resolver",
			Name:      "unresolved_registered_total",
			Help:      "Total number of new unresolved entries added to the review queue",
		},
		[]string{"source"},
	)

	// IntegrityViolationsTotal tracks checksum verification failures
	IntegrityViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "integrity",
			Name:      "violations_total",
			Help:      "Total number of value bundle checksum verification failures",
		},
		[]string{"mode"},
	)

	// MutationAttemptsTotal tracks attempted writes to sealed bundles
	MutationAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "integrity",
			Name:      "mutation_attempts_total",
			Help:      "Total number of attempted writes to sealed value bundles",
		},
	)

	// BatchesArchivedTotal tracks archived raw batches
	BatchesArchivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "archive",
			Name:      "batches_total",
			Help:      "Total number of raw batches archived",
		},
		[]string{"source"},
	)

	// ReplaysTotal tracks batch replays by outcome
	ReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "archive",
			Name:      "replays_total",
			Help:      "Total number of batch replays by outcome",
		},
		[]string{"status"},
	)

	// ArchivePayloadBytes tracks serialized payload sizes before compression
	ArchivePayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "archive",
			Name:      "payload_bytes",
			Help:      "Serialized batch payload size in bytes before compression",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	// ArchiveCompressedBytes tracks payload sizes after compression
	ArchiveCompressedBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "archive",
			Name:      "compressed_bytes",
			Help:      "Batch payload size in bytes after compression",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)
)

// RecordResolution records a resolution outcome
func RecordResolution(source, matchType string) {
	ResolutionsTotal.WithLabelValues(source, matchType).Inc()
}

// RecordReplay records a replay outcome
func RecordReplay(status string) {
	ReplaysTotal.WithLabelValues(status).Inc()
}
