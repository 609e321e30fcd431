package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesPredictionMetrics(t *testing.T) {
	PredictionsTotal.WithLabelValues("Low_Downtime").Inc()
	PredictionErrorsTotal.WithLabelValues("classifier").Inc()
	CacheHitsTotal.Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(w.Body)
	for _, want := range []string{
		`downtime_predictions_total{label="Low_Downtime"}`,
		`downtime_prediction_errors_total{stage="classifier"}`,
		"downtime_cache_hits_total",
		"downtime_prediction_duration_ms_bucket",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected %s in metrics output", want)
		}
	}
}
