package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeFallback    = "fallback"
	OutcomePlaceholder = "placeholder"
	OutcomeError       = "error"
	OutcomeSkipped     = "skipped"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "autovid",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		},
		[]string{"stage"},
	)

	stageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autovid",
			Name:      "stage_outcomes_total",
			Help:      "Pipeline stage completions by outcome",
		},
		[]string{"stage", "outcome"},
	)

	providerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autovid",
			Name:      "provider_requests_total",
			Help:      "Outbound provider calls by result",
		},
		[]string{"provider", "result"},
	)

	renderPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autovid",
			Name:      "render_polls_total",
			Help:      "Render job status polls by reported status",
		},
		[]string{"status"},
	)

	scenesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "autovid",
			Name:      "scenes_dropped_total",
			Help:      "Scenes dropped by the media stage",
		},
	)
)

// ObserveStage records one stage execution.
func ObserveStage(stage, outcome string, took time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(took.Seconds())
	stageOutcomes.WithLabelValues(stage, outcome).Inc()
}

// ProviderRequest counts one outbound call; result is "ok" or "error".
func ProviderRequest(provider string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	providerRequests.WithLabelValues(provider, result).Inc()
}

// RenderPoll counts one status poll.
func RenderPoll(status string) {
	renderPolls.WithLabelValues(status).Inc()
}

// SceneDropped counts one scene removed by the media stage.
func SceneDropped() {
	scenesDropped.Inc()
}
