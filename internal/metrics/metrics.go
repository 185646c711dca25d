// Package metrics provides Prometheus instrumentation for the pausebot
// services. It exposes gauges for live session counts, counters for prompt
// and decision throughput, and histograms for gate latency tracking.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsActive tracks the current number of pending reflection sessions.
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pausebot_sessions_active",
		Help: "Current number of pending reflection sessions",
	})

	// PromptsTotal counts reflection prompts sent to authors.
	PromptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pausebot_prompts_total",
		Help: "Total number of reflection prompts sent",
	})

	// DecisionsTotal counts resolved sessions, labeled by terminal state.
	DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pausebot_decisions_total",
		Help: "Total number of resolved reflection sessions",
	}, []string{"category"}) // category = "posted", "edited", "cancelled", "expired"

	// GateLatency records toxicity gate evaluation latency in seconds.
	GateLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pausebot_gate_latency_seconds",
		Help:    "Toxicity gate evaluation latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// EngineFailures counts scoring engine calls that errored or timed out
	// and were resolved by the fail-open policy.
	EngineFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pausebot_engine_failures_total",
		Help: "Total number of scoring engine failures resolved fail-open",
	})

	// PromptsSuppressed counts interceptions skipped by rate limiting or a
	// disabled guild, labeled by cause.
	PromptsSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pausebot_prompts_suppressed_total",
		Help: "Total number of interceptions suppressed before prompting",
	}, []string{"cause"}) // cause = "rate_limited", "guild_disabled"
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		PromptsTotal,
		DecisionsTotal,
		GateLatency,
		EngineFailures,
		PromptsSuppressed,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
