package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "downtime_predictions_total",
		Help: "Total number of served predictions by label",
	}, []string{"label"})
	PredictionErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "downtime_prediction_errors_total",
		Help: "Total number of failed predictions by stage",
	}, []string{"stage"})
	PredictionDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "downtime_prediction_duration_ms",
		Help:    "Prediction duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "downtime_cache_hits_total",
		Help: "Total prediction cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "downtime_cache_misses_total",
		Help: "Total prediction cache misses",
	})
)

func init() {
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(PredictionErrorsTotal)
	prometheus.MustRegister(PredictionDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
