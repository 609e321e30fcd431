package prediction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kartoza/downtime-predictor/internal/cache"
	"github.com/kartoza/downtime-predictor/internal/catalog"
	"github.com/kartoza/downtime-predictor/internal/classifier"
	"github.com/kartoza/downtime-predictor/internal/display"
	"github.com/kartoza/downtime-predictor/internal/features"
	"github.com/kartoza/downtime-predictor/internal/history"
	"github.com/kartoza/downtime-predictor/internal/metrics"
)

// Result is a served prediction
type Result struct {
	ID        string
	CreatedAt time.Time
	Row       features.Row
	Label     string
	Style     display.Style
	Cached    bool
}

// Service collects form input, builds the feature row and runs one inference
type Service struct {
	catalog *catalog.Catalog
	model   classifier.Classifier
	cache   cache.Cache
	history history.Store
	ttl     time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// NewService wires the adapter. model may be nil when no artifact could be
// loaded; the form still renders but predictions fail with ErrNoModel.
func NewService(
	cat *catalog.Catalog,
	model classifier.Classifier,
	c cache.Cache,
	h history.Store,
	ttl time.Duration,
	log *slog.Logger,
) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if h == nil {
		h = history.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		catalog: cat,
		model:   model,
		cache:   c,
		history: h,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
	}
}

// Catalog returns the form catalog
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// History returns the prediction log
func (s *Service) History() history.Store {
	return s.history
}

// ModelInfo describes the loaded model; ok is false when none is loaded
func (s *Service) ModelInfo() (info classifier.Info, ok bool) {
	if s.model == nil {
		return classifier.Info{}, false
	}
	return s.model.Info(), true
}

// HistoryEnabled reports whether predictions are actually being recorded
func (s *Service) HistoryEnabled() bool {
	_, nop := s.history.(history.Nop)
	return !nop
}

// CacheEnabled reports whether a real cache backs the service
func (s *Service) CacheEnabled() bool {
	_, nop := s.cache.(cache.Nop)
	return !nop
}

// RequiresCategorical reports whether city, locality and weather must be
// selected. Without a model the full form is required.
func (s *Service) RequiresCategorical() bool {
	if s.model == nil {
		return true
	}
	return s.model.Info().RequiresCategorical()
}

// Predict validates in, asks the model for a label and records the outcome
func (s *Service) Predict(ctx context.Context, in features.Input) (*Result, error) {
	start := time.Now()

	row, err := features.Build(s.catalog, in, s.RequiresCategorical())
	if err != nil {
		metrics.PredictionErrorsTotal.WithLabelValues("validation").Inc()
		return nil, err
	}
	if s.model == nil {
		metrics.PredictionErrorsTotal.WithLabelValues("model").Inc()
		return nil, classifier.ErrNoModel
	}

	res := &Result{
		ID:        uuid.New().String(),
		CreatedAt: s.now().UTC(),
		Row:       row,
	}

	key := cacheKey(s.model.Info(), row)
	if label, ok, err := s.cache.Get(ctx, key); err != nil {
		metrics.PredictionErrorsTotal.WithLabelValues("cache").Inc()
		s.log.Warn("cache_get_error", "err", err)
	} else if ok {
		metrics.CacheHitsTotal.Inc()
		res.Label = label
		res.Cached = true
	} else {
		metrics.CacheMissesTotal.Inc()
	}

	if !res.Cached {
		label, err := s.model.Predict(ctx, row)
		if err != nil {
			metrics.PredictionErrorsTotal.WithLabelValues("classifier").Inc()
			return nil, fmt.Errorf("prediction failed: %w", err)
		}
		res.Label = label
		if err := s.cache.Set(ctx, key, label, s.ttl); err != nil {
			metrics.PredictionErrorsTotal.WithLabelValues("cache").Inc()
			s.log.Warn("cache_set_error", "err", err)
		}
	}
	res.Style = display.StyleFor(res.Label)

	rec := &history.Record{
		ID:        res.ID,
		CreatedAt: res.CreatedAt,
		Label:     res.Label,
		Model:     s.model.Info().Name,
		Cached:    res.Cached,
		Features:  row,
	}
	if err := s.history.Record(ctx, rec); err != nil {
		metrics.PredictionErrorsTotal.WithLabelValues("history").Inc()
		s.log.Warn("history_record_error", "id", res.ID, "err", err)
	}

	metrics.PredictionsTotal.WithLabelValues(s.metricLabel(res.Label)).Inc()
	metrics.PredictionDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	s.log.Info("prediction_ok",
		"id", res.ID,
		"label", res.Label,
		"cached", res.Cached,
		"city", row.City,
		"locality", row.Locality,
	)
	return res, nil
}

// cacheKey scopes a row fingerprint to the model that labels it, so a
// shared or persistent cache never serves another model's answer
func cacheKey(info classifier.Info, row features.Row) string {
	sum := sha256.Sum256([]byte(info.Name + "\n" + info.Source + "\n" + info.Digest + "\n" + row.Fingerprint()))
	return hex.EncodeToString(sum[:])
}

// metricLabel keeps the label dimension bounded: anything outside the
// model's classes (or the known labels, for models that do not list them)
// is counted as "other"
func (s *Service) metricLabel(label string) string {
	classes := s.model.Info().Classes
	if len(classes) == 0 {
		classes = display.Labels
	}
	for _, c := range classes {
		if c == label {
			return label
		}
	}
	return "other"
}

// About returns the notice shown after a prediction
func (s *Service) About() (display.About, bool) {
	info, ok := s.ModelInfo()
	if !ok {
		return display.About{}, false
	}
	return display.About{
		Classifier: info.Name,
		Accuracy:   info.Accuracy,
		BuiltBy:    info.Author,
	}, true
}
