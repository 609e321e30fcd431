package prediction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/kartoza/downtime-predictor/internal/cache"
	"github.com/kartoza/downtime-predictor/internal/catalog"
	"github.com/kartoza/downtime-predictor/internal/classifier"
	"github.com/kartoza/downtime-predictor/internal/display"
	"github.com/kartoza/downtime-predictor/internal/features"
	"github.com/kartoza/downtime-predictor/internal/history"
)

// fakeClassifier records every row it is asked about
type fakeClassifier struct {
	mu    sync.Mutex
	label   string
	err     error
	cols    []string
	digest  string
	classes []string
	rows    []features.Row
}

func (f *fakeClassifier) Predict(_ context.Context, row features.Row) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return f.label, f.err
}

func (f *fakeClassifier) Info() classifier.Info {
	return classifier.Info{
		Name:     "fake",
		Accuracy: 0.92,
		Author:   "tests",
		Features: f.cols,
		Classes:  f.classes,
		Digest:   f.digest,
	}
}

func (f *fakeClassifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type failingHistory struct{ history.Nop }

func (failingHistory) Record(context.Context, *history.Record) error {
	return errors.New("disk full")
}

type memoryHistory struct {
	history.Nop
	records []*history.Record
}

func (m *memoryHistory) Record(_ context.Context, r *history.Record) error {
	m.records = append(m.records, r)
	return nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default failed: %v", err)
	}
	return cat
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fullInput() features.Input {
	return features.Input{
		City:              "Chennai",
		Locality:          "Adyar",
		WeatherCondition:  "Rainy",
		DownloadSpeedMbps: features.Float(48.2),
		UploadSpeedMbps:   features.Float(12.5),
		LatencyMs:         features.Float(35),
		JitterMs:          features.Float(4.4),
		PacketLoss:        features.Float(1.2),
		Complaints:        features.Float(7),
	}
}

func TestPredictForwardsLabel(t *testing.T) {
	clf := &fakeClassifier{label: "Moderate_Downtime", cols: features.Row{}.Columns()}
	hist := &memoryHistory{}
	svc := NewService(testCatalog(t), clf, nil, hist, time.Minute, quietLogger())

	res, err := svc.Predict(context.Background(), fullInput())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if res.Label != "Moderate_Downtime" {
		t.Errorf("Expected the model label unchanged, got %q", res.Label)
	}
	if res.Style != display.StyleFor("Moderate_Downtime") {
		t.Errorf("Unexpected style %+v", res.Style)
	}
	if clf.calls() != 1 {
		t.Fatalf("Expected exactly one model call, got %d", clf.calls())
	}

	want := features.Row{
		City: "Chennai", Locality: "Adyar", WeatherCondition: "Rainy",
		DownloadSpeedMbps: 48.2, UploadSpeedMbps: 12.5,
		LatencyMs: 35, JitterMs: 4.4, PacketLoss: 1.2, Complaints: 7,
	}
	if diff := cmp.Diff(want, clf.rows[0]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}

	if len(hist.records) != 1 {
		t.Fatalf("Expected one history record, got %d", len(hist.records))
	}
	if hist.records[0].ID != res.ID || hist.records[0].Label != res.Label {
		t.Errorf("History record does not match result: %+v", hist.records[0])
	}
}

func TestPredictUnknownLabelPassesThrough(t *testing.T) {
	clf := &fakeClassifier{label: "Severe_Downtime", cols: features.Row{}.Columns()}
	svc := NewService(testCatalog(t), clf, nil, nil, 0, quietLogger())

	res, err := svc.Predict(context.Background(), fullInput())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if res.Label != "Severe_Downtime" {
		t.Errorf("Expected unknown label to pass through, got %q", res.Label)
	}
	if res.Style.Color != "black" || res.Style.Bold {
		t.Errorf("Expected plain black styling, got %+v", res.Style)
	}
}

func TestPredictValidation(t *testing.T) {
	clf := &fakeClassifier{label: "Low_Downtime", cols: features.Row{}.Columns()}
	svc := NewService(testCatalog(t), clf, nil, nil, 0, quietLogger())

	in := fullInput()
	in.City = ""
	in.Locality = ""

	_, err := svc.Predict(context.Background(), in)
	var verr *features.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a ValidationError, got %v", err)
	}
	if _, ok := verr.Fields[features.ColCity]; !ok {
		t.Errorf("Expected a City error, got %v", verr.Fields)
	}
	if clf.calls() != 0 {
		t.Errorf("Model must not be called for invalid input, got %d calls", clf.calls())
	}
}

func TestPredictNumericOnlyModelSkipsSelectors(t *testing.T) {
	clf := &fakeClassifier{label: "Low_Downtime", cols: features.NumericOnlyColumns}
	svc := NewService(testCatalog(t), clf, nil, nil, 0, quietLogger())

	if svc.RequiresCategorical() {
		t.Fatal("Numeric-only model should not require selectors")
	}
	in := fullInput()
	in.City, in.Locality, in.WeatherCondition = "", "", ""

	res, err := svc.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if res.Label != "Low_Downtime" {
		t.Errorf("Unexpected label %q", res.Label)
	}
}

func TestPredictCacheShortCircuits(t *testing.T) {
	clf := &fakeClassifier{label: "High_Downtime", cols: features.Row{}.Columns()}
	mem := cache.NewMemory(0, time.Minute)
	svc := NewService(testCatalog(t), clf, mem, nil, time.Minute, quietLogger())

	first, err := svc.Predict(context.Background(), fullInput())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	second, err := svc.Predict(context.Background(), fullInput())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if first.Cached || !second.Cached {
		t.Errorf("Expected cached=false then true, got %v then %v", first.Cached, second.Cached)
	}
	if second.Label != "High_Downtime" {
		t.Errorf("Unexpected cached label %q", second.Label)
	}
	if clf.calls() != 1 {
		t.Errorf("Expected one model call, got %d", clf.calls())
	}
	if first.ID == second.ID {
		t.Error("Each prediction should get its own id")
	}
}

func TestPredictClassifierError(t *testing.T) {
	boom := errors.New("model server down")
	clf := &fakeClassifier{err: boom, cols: features.Row{}.Columns()}
	hist := &memoryHistory{}
	svc := NewService(testCatalog(t), clf, nil, hist, 0, quietLogger())

	_, err := svc.Predict(context.Background(), fullInput())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped classifier error, got %v", err)
	}
	if len(hist.records) != 0 {
		t.Error("Failed predictions must not be recorded")
	}
}

func TestPredictToleratesHistoryFailure(t *testing.T) {
	clf := &fakeClassifier{label: "Low_Downtime", cols: features.Row{}.Columns()}
	svc := NewService(testCatalog(t), clf, nil, failingHistory{}, 0, quietLogger())

	res, err := svc.Predict(context.Background(), fullInput())
	if err != nil {
		t.Fatalf("History failure should not fail the prediction: %v", err)
	}
	if res.Label != "Low_Downtime" {
		t.Errorf("Unexpected label %q", res.Label)
	}
}

func TestPredictWithoutModel(t *testing.T) {
	svc := NewService(testCatalog(t), nil, nil, nil, 0, quietLogger())

	if _, ok := svc.ModelInfo(); ok {
		t.Error("Expected no model info")
	}
	if _, ok := svc.About(); ok {
		t.Error("Expected no about notice")
	}
	if _, err := svc.Predict(context.Background(), fullInput()); !errors.Is(err, classifier.ErrNoModel) {
		t.Errorf("Expected ErrNoModel, got %v", err)
	}
}

func TestAbout(t *testing.T) {
	clf := &fakeClassifier{label: "Low_Downtime", cols: features.Row{}.Columns()}
	svc := NewService(testCatalog(t), clf, nil, nil, 0, quietLogger())

	about, ok := svc.About()
	if !ok {
		t.Fatal("Expected an about notice")
	}
	want := display.About{Classifier: "fake", Accuracy: 0.92, BuiltBy: "tests"}
	if diff := cmp.Diff(want, about); diff != "" {
		t.Errorf("about mismatch (-want +got):\n%s", diff)
	}
}

func TestPredictEndToEndWithForest(t *testing.T) {
	clf, err := classifier.LoadForest("../classifier/testdata/forest.json")
	if err != nil {
		t.Fatalf("LoadForest failed: %v", err)
	}
	svc := NewService(testCatalog(t), clf, nil, nil, 0, quietLogger())

	res, err := svc.Predict(context.Background(), fullInput())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if res.Label != display.LabelLow {
		t.Errorf("Expected %s, got %s", display.LabelLow, res.Label)
	}
}

func TestCacheIsScopedToModel(t *testing.T) {
	shared := cache.NewMemory(0, time.Minute)
	cat := testCatalog(t)

	v1 := &fakeClassifier{label: "Low_Downtime", cols: features.Row{}.Columns(), digest: "v1"}
	v2 := &fakeClassifier{label: "High_Downtime", cols: features.Row{}.Columns(), digest: "v2"}
	first := NewService(cat, v1, shared, nil, time.Minute, quietLogger())
	second := NewService(cat, v2, shared, nil, time.Minute, quietLogger())

	if _, err := first.Predict(context.Background(), fullInput()); err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	res, err := second.Predict(context.Background(), fullInput())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if res.Cached || res.Label != "High_Downtime" {
		t.Errorf("Expected the second model's own answer, got %q cached=%v", res.Label, res.Cached)
	}
	if v2.calls() != 1 {
		t.Errorf("Expected the second model to be called once, got %d", v2.calls())
	}
}

func TestMetricLabel(t *testing.T) {
	cat := testCatalog(t)
	withClasses := NewService(cat, &fakeClassifier{classes: []string{"Low_Downtime", "Severe_Downtime"}}, nil, nil, 0, quietLogger())
	withoutClasses := NewService(cat, &fakeClassifier{}, nil, nil, 0, quietLogger())

	tests := []struct {
		name  string
		svc   *Service
		label string
		want  string
	}{
		{"model class", withClasses, "Severe_Downtime", "Severe_Downtime"},
		{"outside model classes", withClasses, "High_Downtime", "other"},
		{"known label", withoutClasses, "Moderate_Downtime", "Moderate_Downtime"},
		{"arbitrary text", withoutClasses, "<random>", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.svc.metricLabel(tt.label); got != tt.want {
				t.Errorf("metricLabel(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestStoresEnabled(t *testing.T) {
	cat := testCatalog(t)
	clf := &fakeClassifier{label: "Low_Downtime"}

	off := NewService(cat, clf, nil, nil, 0, quietLogger())
	if off.HistoryEnabled() || off.CacheEnabled() {
		t.Error("Expected no-op stores to be reported as disabled")
	}
	on := NewService(cat, clf, cache.NewMemory(0, time.Minute), &memoryHistory{}, time.Minute, quietLogger())
	if !on.HistoryEnabled() || !on.CacheEnabled() {
		t.Error("Expected real stores to be reported as enabled")
	}
}
