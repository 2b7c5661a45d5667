package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query execution Prometheus metrics.
var (
	QueryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryspec",
			Name:      "query_executions_total",
			Help:      "Total number of query specification executions",
		},
		[]string{"collection", "operation", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "queryspec",
			Name:      "query_duration_seconds",
			Help:      "Query pipeline execution duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"collection", "operation"},
	)

	QueryResultSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "queryspec",
			Name:      "query_result_size",
			Help:      "Number of entities returned per query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"collection"},
	)

	SavedSpecOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryspec",
			Name:      "saved_spec_operations_total",
			Help:      "Total saved specification registry operations",
		},
		[]string{"operation", "status"},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers Prometheus query metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryExecutionsTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryResultSize)
	prometheus.MustRegister(SavedSpecOperationsTotal)
	queryMetricsRegistered = true
}
