package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels answered questions.
	OutcomeSuccess = "success"
	// OutcomeRejected labels questions refused by admission control.
	OutcomeRejected = "rejected"
	// OutcomeError labels questions that failed outright.
	OutcomeError = "error"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maestro_engine",
			Name:      "questions_total",
			Help:      "Total questions handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	answerDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "maestro_engine",
			Name:      "answer_seconds",
			Help:      "End-to-end answer latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 10},
		},
	)

	cacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maestro_engine",
			Name:      "cache_events_total",
			Help:      "Response cache lookups by event kind.",
		},
		[]string{"event"},
	)

	rateLimitDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maestro_engine",
			Name:      "rate_limit_denials_total",
			Help:      "Admission denials by scope.",
		},
		[]string{"scope"},
	)

	alertsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maestro_engine",
			Name:      "alerts_created_total",
			Help:      "Alerts raised by the monitoring scan, by severity.",
		},
		[]string{"severity"},
	)

	briefingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "maestro_engine",
			Name:      "briefings_total",
			Help:      "Briefing digests generated.",
		},
	)
)

// Register attaches maestro-engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		questionsTotal,
		answerDurationSeconds,
		cacheEventsTotal,
		rateLimitDenialsTotal,
		alertsCreatedTotal,
		briefingsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveQuestion records a question outcome and its latency.
func ObserveQuestion(duration time.Duration, outcome string) {
	questionsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	answerDurationSeconds.Observe(duration.Seconds())
}

// ObserveCacheEvent records a response-cache hit, miss or inflight wait.
func ObserveCacheEvent(event string) {
	cacheEventsTotal.WithLabelValues(event).Inc()
}

// ObserveRateLimitDenial records an admission denial for the given scope.
func ObserveRateLimitDenial(scope string) {
	rateLimitDenialsTotal.WithLabelValues(scope).Inc()
}

// ObserveAlertCreated records a newly-raised alert.
func ObserveAlertCreated(severity string) {
	alertsCreatedTotal.WithLabelValues(severity).Inc()
}

// ObserveBriefing records a generated digest.
func ObserveBriefing() {
	briefingsTotal.Inc()
}
