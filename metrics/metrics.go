// Package metrics holds the prometheus collectors of the indexer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lunch"

// Replication
var (
	ReplicationFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "frames_total",
			Help:      "wal2json frames received, by action",
		},
		[]string{"action"},
	)

	ReplicationMalformedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "malformed_frames_total",
			Help:      "Frames that could not be decoded and were skipped",
		},
	)

	Transactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "transactions_total",
			Help:      "Committed transactions handed to the batch handler, by outcome",
		},
		[]string{"outcome"},
	)

	TransactionSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "transaction_messages",
			Help:      "Row changes per committed transaction",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	AcknowledgedLSN = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "acknowledged_lsn",
			Help:      "Last LSN acknowledged to the server",
		},
		[]string{"slot"},
	)

	DeadLetters = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "dead_letters_total",
			Help:      "Failed transactions recorded for triage",
		},
	)

	DeadLetterBacklog = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "dead_letter_backlog",
			Help:      "Dead letters currently kept per slot",
		},
		[]string{"slot"},
	)
)

// Dispatch and enrichment
var (
	DispatchedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Change events routed by the dispatcher, by action",
		},
		[]string{"action"},
	)

	EnrichmentDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "dropped_total",
			Help:      "Insert events dropped during enrichment, by reason",
		},
		[]string{"reason"},
	)

	RestaurantsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "restaurants_inserted_total",
			Help:      "Rows written by the insert-or-ignore upsert",
		},
	)

	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geocode",
			Name:      "requests_total",
			Help:      "Geocoding provider calls, by outcome",
		},
		[]string{"outcome"},
	)

	GeocodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "geocode",
			Name:      "request_duration_seconds",
			Help:      "Latency of geocoding provider calls",
			Buckets:   prometheus.DefBuckets,
		},
	)

	GeocodeCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geocode",
			Name:      "cache_total",
			Help:      "Geocode cache lookups, by result",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "geocode",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Query engine
var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Spatial queries served, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Spatial query latency, by kind",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	SearchCells = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "cells",
			Help:      "Cells in the covering or disk of a spatial query",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"kind"},
	)
)
