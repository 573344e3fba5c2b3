package matching

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutualMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchcore_mutual_matches_total",
			Help: "Mutual match checks by outcome",
		},
		[]string{"outcome"},
	)

	recommendationsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchcore_recommendations_generated_total",
			Help: "Total number of recommendations persisted",
		},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchcore_compatibility_scores",
			Help:    "Distribution of overall compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	scoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchcore_scoring_duration_seconds",
			Help:    "Time spent waiting on the scoring oracle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	compatibilityCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchcore_compatibility_cache_total",
			Help: "Compatibility lookups by cache layer and result",
		},
		[]string{"layer", "result"},
	)

	interactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchcore_interactions_total",
			Help: "Recorded interactions by type",
		},
		[]string{"type"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "matchcore_generation_duration_seconds",
			Help: "Duration of recommendation and batch operations",
		},
		[]string{"action"},
	)
)

func RecordMutualMatch(outcome string) {
	mutualMatchesTotal.WithLabelValues(outcome).Inc()
}

func RecordRecommendations(n int) {
	recommendationsGenerated.Add(float64(n))
}

func RecordCompatibilityScore(score int) {
	compatibilityScores.Observe(float64(score))
}

func RecordScoringDuration(provider string, d time.Duration) {
	scoringDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordCacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	compatibilityCache.WithLabelValues(layer, result).Inc()
}

func RecordInteraction(t InteractionType) {
	interactionsTotal.WithLabelValues(string(t)).Inc()
}

func RecordDuration(action string, d time.Duration) {
	generationDuration.WithLabelValues(action).Observe(d.Seconds())
}
