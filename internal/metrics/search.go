package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "khoj",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"mode", "degraded"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "khoj",
			Name:      "backend_request_duration_seconds",
			Help:      "Retrieval backend call duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "outcome"},
	)

	CanonTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "khoj",
			Name:      "canon_tokens_total",
			Help:      "Canonicalized query tokens by source",
		},
		[]string{"source"},
	)

	FusionCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "khoj",
			Name:      "fusion_candidates",
			Help:      "Number of distinct candidates entering fusion ranking",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 200, 400},
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(CanonTokensTotal)
	prometheus.MustRegister(FusionCandidates)
	searchMetricsRegistered = true
}
