package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	reconcileOpsTotal     *prometheus.CounterVec
	pagesMatchedTotal     *prometheus.CounterVec
	matchSimilarityScores prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors for the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workbook_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workbook_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workbook_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		reconcileOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workbook_reconcile_operations_total",
			Help: "Total number of ledger reconciliation operations.",
		}, []string{"operation"})

		pagesMatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workbook_pages_matched_total",
			Help: "Batch matcher outcomes per submitted image.",
		}, []string{"outcome"})

		matchSimilarityScores = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "workbook_match_similarity",
			Help:    "Similarity scores of accepted page matches.",
			Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			reconcileOpsTotal,
			pagesMatchedTotal,
			matchSimilarityScores,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ReconcileOps exposes the counter for ledger reconciliation operations.
func ReconcileOps() *prometheus.CounterVec {
	RegisterMetrics()
	return reconcileOpsTotal
}

// PagesMatched exposes the matcher outcome counter.
func PagesMatched() *prometheus.CounterVec {
	RegisterMetrics()
	return pagesMatchedTotal
}

// MatchSimilarity exposes the accepted-match similarity histogram.
func MatchSimilarity() prometheus.Histogram {
	RegisterMetrics()
	return matchSimilarityScores
}
