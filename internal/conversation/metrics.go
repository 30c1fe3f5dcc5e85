package conversation

import "github.com/prometheus/client_golang/prometheus"

var (
	llmLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "salon",
		Subsystem: "conversation",
		Name:      "llm_latency_seconds",
		Help:      "Latency of LLM completions by provider and model.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "model"})

	llmTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "conversation",
		Name:      "llm_tokens_total",
		Help:      "Tokens consumed by provider and direction.",
	}, []string{"provider", "direction"})

	llmFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "conversation",
		Name:      "llm_fallbacks_total",
		Help:      "Completions served by the fallback provider.",
	})

	fieldsExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "conversation",
		Name:      "fields_extracted_total",
		Help:      "Fields filled by each extraction rule.",
	}, []string{"rule"})

	turnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "conversation",
		Name:      "turns_total",
		Help:      "Conversation turns by resulting action.",
	}, []string{"action"})

	bookingAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "conversation",
		Name:      "booking_attempts_total",
		Help:      "Order submissions by outcome.",
	}, []string{"outcome"})

	paymentChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "conversation",
		Name:      "payment_checks_total",
		Help:      "Payment confirmation checks by status.",
	}, []string{"status"})

	sessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "conversation",
		Name:      "sessions_evicted_total",
		Help:      "Idle in-memory sessions removed by the sweeper.",
	})

	jobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "conversation",
		Name:      "jobs_processed_total",
		Help:      "Queued turn jobs by status.",
	}, []string{"status"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		llmLatency, llmTokensTotal, llmFallbacksTotal, fieldsExtracted, turnsTotal,
		bookingAttempts, paymentChecks, sessionsEvicted, jobsProcessed,
	}
}

func init() {
	prometheus.MustRegister(collectors()...)
}

// RegisterMetrics registers conversation metrics with a custom registry.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(collectors()...)
}
