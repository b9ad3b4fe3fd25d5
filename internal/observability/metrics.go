package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Client-side metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool_driver", Name: "api_requests_total", Help: "Backend API requests issued by the client"},
		[]string{"method", "endpoint", "status"},
	)
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool_driver",
			Name:      "api_request_duration_seconds",
			Help:      "Backend API request latency seen by the client",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	SessionExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool_driver", Name: "session_expired_total", Help: "Requests answered with 401 that cleared the stored token"})
	LocationPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool_driver", Name: "location_pushes_total", Help: "Driver location pushes by sink and outcome"},
		[]string{"sink", "outcome"},
	)
)

// Dev backend metrics.
var (
	TripsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool_devapi", Name: "trips_created_total", Help: "Trips created"})
	DriversTracked    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "carpool_devapi", Name: "drivers_tracked", Help: "Drivers with a known location"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool_devapi", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool_devapi",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Location indexer metrics.
var (
	IndexerMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool_indexer", Name: "messages_total", Help: "Location messages consumed by outcome"},
		[]string{"outcome"},
	)
)
