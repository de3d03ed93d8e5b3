// Package metrics registers the Prometheus collectors for the
// admission core. Everything registers on the default registry and is
// served by the gateway's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdmissionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_admission_checks_total",
		Help: "Rate limit checks by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	AdmissionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_admission_fallbacks_total",
		Help: "Checks answered by the in-process fallback counter.",
	})

	DuplicateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_duplicate_checks_total",
		Help: "Duplicate prevention decisions by outcome.",
	}, []string{"outcome"})

	DuplicateMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_duplicate_matches_total",
		Help: "Positive duplicate matches by method.",
	}, []string{"method"})

	Merges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_account_merges_total",
		Help: "Account merge operations by outcome.",
	}, []string{"outcome"})

	CleanupPairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_cleanup_pairs_total",
		Help: "Duplicate pairs seen by the cleanup job.",
	}, []string{"outcome"})

	CheckDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warden_check_duration_seconds",
		Help:    "Latency of admission and duplicate checks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
