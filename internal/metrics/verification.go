package metrics

import "github.com/prometheus/client_golang/prometheus"

// Verification Prometheus metrics.
var (
	VerificationDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicegate",
			Name:      "verification_decisions_total",
			Help:      "Verification outcomes",
		},
		[]string{"outcome"}, // "accepted" / "rejected" / "error"
	)

	VerificationScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voicegate",
			Name:      "verification_score",
			Help:      "Distribution of raw PLDA and AS-Norm scores",
			Buckets:   prometheus.LinearBuckets(-20, 2.5, 17),
		},
		[]string{"kind"}, // "raw" / "normalized"
	)

	CohortQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voicegate",
			Name:      "cohort_query_duration_seconds",
			Help:      "Cohort top-K query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"side"}, // "enroll" / "test"
	)

	CohortLowConfidenceTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voicegate",
			Name:      "cohort_low_confidence_total",
			Help:      "Decisions normalised against a cohort smaller than the configured minimum",
		},
	)

	EnrollmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicegate",
			Name:      "enrollments_total",
			Help:      "Enrollment requests by status",
		},
		[]string{"status"}, // "ok" / "error"
	)

	VectorStoreRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicegate",
			Name:      "vector_store_retries_total",
			Help:      "Retried vector store calls",
		},
		[]string{"dependency"},
	)

	VoiceprintCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicegate",
			Name:      "voiceprint_cache_total",
			Help:      "Voiceprint cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ExtractorCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicegate",
			Name:      "extractor_cache_total",
			Help:      "Extractor result cache hits and misses",
		},
		[]string{"result"},
	)

	ExtractorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicegate",
			Name:      "extractor_requests_total",
			Help:      "Embedding extractor requests",
		},
		[]string{"status"},
	)

	ExtractorRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "voicegate",
			Name:      "extractor_request_duration_seconds",
			Help:      "Embedding extractor request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

var verificationMetricsRegistered bool

// RegisterVerificationMetrics registers the verification metrics. Must be called once from main.
func RegisterVerificationMetrics() {
	if verificationMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		VerificationDecisionsTotal,
		VerificationScore,
		CohortQueryDuration,
		CohortLowConfidenceTotal,
		EnrollmentsTotal,
		VectorStoreRetriesTotal,
		VoiceprintCacheTotal,
		ExtractorCacheTotal,
		ExtractorRequestsTotal,
		ExtractorRequestDuration,
	)
	verificationMetricsRegistered = true
}

// RetryCounter returns an OnRetry hook that counts retries of the named dependency.
func RetryCounter(dependency string) func(attempt int, err error) {
	c := VectorStoreRetriesTotal.WithLabelValues(dependency)
	return func(int, error) { c.Inc() }
}
