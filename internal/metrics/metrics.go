// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStale   = "stale"
)

var (
	collaboratorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_collaborator_calls_total",
		Help: "Collaborator calls by operation and outcome",
	}, []string{"operation", "outcome"})

	collaboratorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "olive_collaborator_duration_seconds",
		Help:    "Collaborator call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~64s
	}, []string{"operation"})

	batchRooms = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_batch_rooms_total",
		Help: "Rooms processed by multi-room generation, by phase and outcome",
	}, []string{"phase", "outcome"})

	storeSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_store_saves_total",
		Help: "Session saves by tier (full, degraded, dropped)",
	}, []string{"tier"})

	modelSpend = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_model_spend_usd_total",
		Help: "Estimated API spend in USD by provider and model",
	}, []string{"provider", "model"})
)

func ObserveCall(operation string, err error, elapsed time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	collaboratorCalls.WithLabelValues(operation, outcome).Inc()
	collaboratorDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func ObserveStale(operation string) {
	collaboratorCalls.WithLabelValues(operation, OutcomeStale).Inc()
}

// BatchRoom counts one room attempt. Phase is "batch" or "retry".
func BatchRoom(phase string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	batchRooms.WithLabelValues(phase, outcome).Inc()
}

func StoreSave(tier string) {
	storeSaves.WithLabelValues(tier).Inc()
}

func Spend(provider, model string, usd float64) {
	if usd <= 0 {
		return
	}
	modelSpend.WithLabelValues(provider, model).Add(usd)
}
