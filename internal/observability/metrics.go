package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crewcall",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests on the capture server.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crewcall",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	voiceMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crewcall",
			Subsystem: "orchestration",
			Name:      "mutations_total",
			Help:      "Voice-state mutation requests issued, by routine and outcome.",
		},
		[]string{"routine", "outcome"},
	)
	batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crewcall",
			Subsystem: "orchestration",
			Name:      "batch_duration_seconds",
			Help:      "Mutation batch duration in seconds, by routine.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"routine"},
	)
	phaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crewcall",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle phase transitions, by origin and destination.",
		},
		[]string{"from", "to"},
	)
	captureStates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crewcall",
			Subsystem: "capture",
			Name:      "states_total",
			Help:      "Observed game states ingested, by scene.",
		},
		[]string{"scene"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, voiceMutations, batchDuration, phaseTransitions, captureStates)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordBatch(routine string, applied, failed int, duration time.Duration) {
	RegisterMetrics()
	voiceMutations.WithLabelValues(routine, "success").Add(float64(applied))
	voiceMutations.WithLabelValues(routine, "error").Add(float64(failed))
	batchDuration.WithLabelValues(routine).Observe(duration.Seconds())
}

func RecordPhaseTransition(from, to string) {
	RegisterMetrics()
	phaseTransitions.WithLabelValues(from, to).Inc()
}

func RecordCaptureState(scene string) {
	RegisterMetrics()
	captureStates.WithLabelValues(scene).Inc()
}
