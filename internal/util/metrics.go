package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_created_total",
		Help: "Total number of reservations created",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed reservation attempts",
	}, []string{"reason"})

	ReservationsReleasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_released_total",
		Help: "Total number of reservations released",
	}, []string{"reason"})

	SalesCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sales_committed_total",
		Help: "Total number of sales committed against the ledger",
	})

	BulkUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_bulk_updates_total",
		Help: "Total number of bulk update operations",
	}, []string{"action"})

	SnapshotLoadRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_snapshot_load_retries_total",
		Help: "Total number of snapshot load retries",
	})

	StorageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_storage_failures_total",
		Help: "Total number of storage operations that failed after retries",
	}, []string{"operation"})

	AuditFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_audit_failures_total",
		Help: "Total number of audit records that could not be appended",
	})

	MutationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_mutation_latency_seconds",
		Help:    "Latency of ledger mutation operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
