package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consolidation_runs_total",
		Help: "Total number of consolidation runs by outcome",
	}, []string{"outcome"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "consolidation_run_duration_seconds",
		Help:    "Wall time of a consolidation run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	OrdersFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_fetched_total",
		Help: "Total number of pending orders fetched per source",
	}, []string{"source"})

	SourceFetchFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "source_fetch_failed_total",
		Help: "Total number of sources whose fetch failed after retries",
	}, []string{"source"})

	ListingsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_resolved_total",
		Help: "Total number of distinct listings resolved",
	})

	AllocationShortagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocation_shortages_total",
		Help: "Total number of product lines left unallocated",
	})

	AddressDefectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "address_defects_total",
		Help: "Total number of address defects flagged",
	}, []string{"field"})

	InstructionsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instructions_written_total",
		Help: "Total number of shipment instructions written",
	}, []string{"source"})

	OrdersMarkedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_marked_processed_total",
		Help: "Total number of source orders marked as shipment request issued",
	}, []string{"source"})

	ChunkFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "write_chunk_failures_total",
		Help: "Total number of bulk write chunks that failed after retries",
	}, []string{"operation"})

	StoreRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_store_retries_total",
		Help: "Total number of retried records store calls",
	}, []string{"operation"})

	StoreRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "records_store_request_duration_seconds",
		Help:    "Records store request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})

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
