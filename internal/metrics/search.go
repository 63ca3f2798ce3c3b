package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seqdex",
			Name:      "eql_queries_total",
			Help:      "Total number of EQL queries",
		},
		[]string{"kind", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seqdex",
			Name:      "eql_query_duration_seconds",
			Help:      "EQL query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	PageFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seqdex",
			Name:      "backend_page_fetches_total",
			Help:      "Backend pages fetched by stage streams",
		},
		[]string{"role"}, // "event" / "stage" / "until"
	)

	SequencesMatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seqdex",
			Name:      "sequences_matched_total",
			Help:      "Sequences and joins completed by the matcher",
		},
		[]string{"kind"},
	)

	CandidatesDiscardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seqdex",
			Name:      "candidates_discarded_total",
			Help:      "Open sequence candidates dropped before completing",
		},
		[]string{"reason"}, // "replaced" / "maxspan" / "until"
	)

	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seqdex",
			Name:      "events_ingested_total",
			Help:      "Events written through the ingest API",
		},
		[]string{"status"}, // "ok" / "error"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(PageFetchesTotal)
	prometheus.MustRegister(SequencesMatchedTotal)
	prometheus.MustRegister(CandidatesDiscardedTotal)
	prometheus.MustRegister(EventsIngestedTotal)
	searchMetricsRegistered = true
}
