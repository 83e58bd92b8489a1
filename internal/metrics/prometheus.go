package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SuggestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kb_advisor_suggest_duration_seconds",
			Help:    "Suggestion pipeline duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	SuggestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_advisor_suggest_total",
			Help: "Total suggestion queries served",
		},
		[]string{"status"},
	)

	SuggestResultCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kb_advisor_suggest_result_count",
			Help:    "Number of suggestions returned per query",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	ClassifierConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kb_advisor_classifier_confidence",
			Help:    "System classifier confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_advisor_feedback_total",
			Help: "Total feedback events by rating",
		},
		[]string{"rating"},
	)

	RetrainTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_advisor_retrain_total",
			Help: "Total retraining passes by outcome",
		},
		[]string{"status"},
	)

	RetrainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kb_advisor_retrain_duration_seconds",
			Help:    "Full retraining pass duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	TrainingCases = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kb_advisor_training_cases",
			Help: "Case count of the live model snapshot",
		},
	)

	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_advisor_documents_ingested_total",
			Help: "Total documents run through pattern extraction",
		},
		[]string{"system"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_advisor_cache_hits_total",
			Help: "Total suggestion cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kb_advisor_cache_misses_total",
			Help: "Total suggestion cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(SuggestDuration)
	prometheus.MustRegister(SuggestTotal)
	prometheus.MustRegister(SuggestResultCount)
	prometheus.MustRegister(ClassifierConfidence)
	prometheus.MustRegister(FeedbackTotal)
	prometheus.MustRegister(RetrainTotal)
	prometheus.MustRegister(RetrainDuration)
	prometheus.MustRegister(TrainingCases)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
