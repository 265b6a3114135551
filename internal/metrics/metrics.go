package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reader / normalizer metrics
	RecordsReadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orgmesh_ingest_records_read_total",
			Help: "Total number of raw records decoded from the input container",
		},
	)

	RecordsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgmesh_ingest_records_dropped_total",
			Help: "Total number of records dropped during normalization",
		},
		[]string{"reason"},
	)

	// Queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orgmesh_ingest_queue_depth",
			Help: "Current depth of the raw record queue",
		},
	)

	// Aggregation metrics
	EventsEmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orgmesh_ingest_events_emitted_total",
			Help: "Total number of communication events fanned out to recipients",
		},
	)

	EdgeUpsertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orgmesh_ingest_edge_upserts_total",
			Help: "Total number of edge aggregate create-or-update operations",
		},
	)

	ParticipantsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orgmesh_ingest_participants_created_total",
			Help: "Total number of participants created on first sight",
		},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orgmesh_ingest_flush_duration_seconds",
			Help:    "Duration of batch flushes to the durable store in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Oracle metrics
	OracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgmesh_oracle_calls_total",
			Help: "Total number of enrichment oracle calls",
		},
		[]string{"status"},
	)

	OracleCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orgmesh_oracle_call_duration_seconds",
			Help:    "Duration of enrichment oracle calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
