// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteRequestsTotal       *prometheus.CounterVec
	remoteRequestDurationSecs *prometheus.HistogramVec
	batchItemsTotal           *prometheus.CounterVec
	snapshotsTotal            *prometheus.CounterVec
	seriesTotal               prometheus.Counter
	seriesPointsTotal         prometheus.Counter
	ingestPhraseFailuresTotal prometheus.Counter

	once sync.Once
)

// Init registers the Prometheus collectors. It is safe to call more than
// once.
func Init() {
	once.Do(func() {
		remoteRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordstat_remote_requests_total",
				Help: "Total Wordstat API calls, labeled by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)

		remoteRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wordstat_remote_request_duration_seconds",
				Help:    "Latency of Wordstat API calls, labeled by endpoint.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)

		batchItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordstat_batch_items_total",
				Help: "Batch items processed, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		snapshotsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordstat_top_snapshots_total",
				Help: "Top-request snapshot persistence results.",
			},
			[]string{"result"},
		)

		seriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wordstat_dynamics_series_total",
				Help: "Dynamics series rows persisted.",
			},
		)

		seriesPointsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wordstat_dynamics_points_total",
				Help: "Dynamics points persisted.",
			},
		)

		ingestPhraseFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wordstat_ingest_phrase_failures_total",
				Help: "Phrases whose persistence was rolled back.",
			},
		)
	})
}

// RemoteRequest records one API call with its outcome and latency.
func RemoteRequest(endpoint, outcome string, elapsed time.Duration) {
	if remoteRequestsTotal == nil {
		return
	}
	remoteRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	remoteRequestDurationSecs.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// BatchItemProcessed records one batch item result.
func BatchItemProcessed(kind, outcome string) {
	if batchItemsTotal == nil {
		return
	}
	batchItemsTotal.WithLabelValues(kind, outcome).Inc()
}

// SnapshotResult records a snapshot persistence result: "persisted",
// "deduped" or "skipped".
func SnapshotResult(result string) {
	if snapshotsTotal == nil {
		return
	}
	snapshotsTotal.WithLabelValues(result).Inc()
}

// SeriesPersisted records one persisted series and its point count.
func SeriesPersisted(points int) {
	if seriesTotal == nil {
		return
	}
	seriesTotal.Inc()
	seriesPointsTotal.Add(float64(points))
}

// IngestPhraseFailed records a phrase rolled back during persistence.
func IngestPhraseFailed() {
	if ingestPhraseFailuresTotal == nil {
		return
	}
	ingestPhraseFailuresTotal.Inc()
}
