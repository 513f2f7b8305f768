// Package metrics holds the Prometheus collectors for the store, nearby search, chat and HTTP layers.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hyperjump/quanhday/internal/models"
)

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
	OutcomeDenied      = "denied"
	OutcomeAIError     = "ai_error"
	OutcomeFallback    = "fallback"
	OutcomeError       = "error"
)

var (
	// StoreQueries counts range queries issued against the document store.
	StoreQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quanhday_store_queries_total",
			Help: "Total number of document store range queries",
		},
		[]string{"collection", "outcome"},
	)

	// NearbyDuration observes whole FindNearby calls.
	NearbyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quanhday_nearby_duration_seconds",
			Help:    "Nearby search latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"collection", "outcome"},
	)

	// NearbyResults observes the number of results returned per nearby search.
	NearbyResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quanhday_nearby_results",
			Help:    "Number of results returned by a nearby search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
		},
		[]string{"collection"},
	)

	// ChatReplies counts assistant replies by outcome.
	ChatReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quanhday_chat_replies_total",
			Help: "Total number of chat replies",
		},
		[]string{"outcome"},
	)

	// HTTPRequests counts HTTP requests by route pattern.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quanhday_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration observes HTTP request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quanhday_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// Outcome maps an error to its label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, models.ErrInvalidArgument):
		return OutcomeInvalid
	case errors.Is(err, models.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, models.ErrStoreUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, models.ErrPermissionDenied):
		return OutcomeDenied
	case errors.Is(err, models.ErrAIBackend):
		return OutcomeAIError
	}
	return OutcomeError
}

// ObserveNearby records one nearby search.
func ObserveNearby(collection string, start time.Time, results int, err error) {
	NearbyDuration.WithLabelValues(collection, Outcome(err)).Observe(time.Since(start).Seconds())
	if err == nil {
		NearbyResults.WithLabelValues(collection).Observe(float64(results))
	}
}
