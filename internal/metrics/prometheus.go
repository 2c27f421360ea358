package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campus-assist/backend/pkg/circuitbreaker"
)

var (
	AskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campus_assist_ask_duration_seconds",
			Help:    "Question processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"branch"},
	)

	AskTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_assist_ask_total",
			Help: "Total number of questions processed",
		},
		[]string{"branch", "status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campus_assist_confidence_score",
			Help:    "Answer confidence scores",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	LanguageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_assist_language_total",
			Help: "Questions by resolved language",
		},
		[]string{"language"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_assist_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	UpstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_assist_upstream_calls_total",
			Help: "Calls to third-party services by outcome",
		},
		[]string{"upstream", "outcome"},
	)

	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campus_assist_upstream_duration_seconds",
			Help:    "Third-party call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"upstream"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_assist_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_assist_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_assist_feedback_total",
			Help: "User feedback votes",
		},
		[]string{"vote"},
	)

	ForwardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campus_assist_forwarded_total",
			Help: "Conversations forwarded to admin",
		},
	)

	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campus_assist_persist_failures_total",
			Help: "Conversation turns that could not be stored",
		},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "campus_assist_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
		},
		[]string{"upstream"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(AskDuration)
		prometheus.MustRegister(AskTotal)
		prometheus.MustRegister(ConfidenceScore)
		prometheus.MustRegister(LanguageTotal)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(UpstreamCalls)
		prometheus.MustRegister(UpstreamDuration)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(FeedbackTotal)
		prometheus.MustRegister(ForwardedTotal)
		prometheus.MustRegister(PersistFailures)
		prometheus.MustRegister(BreakerState)
	})
}

// RecordBreakerState matches circuitbreaker.Config.OnStateChange.
func RecordBreakerState(upstream string, _, to circuitbreaker.State) {
	BreakerState.WithLabelValues(upstream).Set(float64(to))
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
