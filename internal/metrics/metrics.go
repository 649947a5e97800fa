// Package metrics exposes Prometheus collectors for the emotion engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_emotion_classifications_total",
			Help: "Emotion classifications by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_emotion_cache_lookups_total",
			Help: "Classification cache lookups by result (hit, miss, expired)",
		},
		[]string{"result"},
	)

	FieldSubstitutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_emotion_field_substitutions_total",
			Help: "Provider reply fields replaced by their defaults",
		},
		[]string{"field"},
	)

	SSMLOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_emotion_ssml_total",
			Help: "Generated markup by outcome (ok, repaired, fallback)",
		},
		[]string{"outcome"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cortex_emotion_turn_duration_seconds",
			Help:    "Conversation turn processing time in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
	)

	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortex_emotion_active_conversations",
			Help: "Number of tracked conversation sessions",
		},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_emotion_provider_calls_total",
			Help: "Completion provider calls by provider and status",
		},
		[]string{"provider", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cortex_emotion_provider_latency_seconds",
			Help: "Completion provider latency in seconds",
		},
		[]string{"provider"},
	)

	ProviderTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_emotion_provider_tokens_total",
			Help: "Tokens consumed by completion providers",
		},
		[]string{"provider", "direction"},
	)

	SessionLanes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortex_emotion_session_lanes",
			Help: "Per-session turn queues currently running",
		},
	)

	SnapshotOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_emotion_snapshot_operations_total",
			Help: "Conversation snapshot operations by backend, operation and status",
		},
		[]string{"backend", "op", "status"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
