package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PickupsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickups_created_total",
		Help: "Total number of pickup reservations created",
	})

	PickupsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickups_failed_total",
		Help: "Total number of rejected pickup requests",
	}, []string{"reason"})

	UnitsClaimLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_claim_latency_seconds",
		Help:    "Latency of skip-locked unit claims",
		Buckets: prometheus.DefBuckets,
	})

	UnitsRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_units_registered_total",
		Help: "Total number of serialized units listed",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"status"})

	OrderOperationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_operation_failures_total",
		Help: "Total number of failed order operations",
	}, []string{"operation", "code"})

	CommissionCreditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_credits_total",
		Help: "Total number of wallet credits made during settlement",
	}, []string{"tier"})

	SettlementsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_skipped_total",
		Help: "Total number of settlements that credited nothing",
	}, []string{"reason"})

	SettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_latency_seconds",
		Help:    "Latency of commission settlement inside confirmation",
		Buckets: prometheus.DefBuckets,
	})

	BulkItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_items_total",
		Help: "Total number of bulk items processed",
	}, []string{"action", "outcome"})

	RateTableVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "commission_rate_table_version",
		Help: "Newest commission rate table version applied",
	})

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
