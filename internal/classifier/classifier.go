package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kartoza/downtime-predictor/internal/features"
)

var (
	// ErrNoModel is returned when prediction is attempted without a loaded model
	ErrNoModel = errors.New("no model loaded")
	// ErrEmptyPrediction is returned when the model answers with no labels
	ErrEmptyPrediction = errors.New("model returned an empty prediction")
)

// Classifier is the black-box predict capability of a trained model
type Classifier interface {
	// Predict returns the label for a single feature row
	Predict(ctx context.Context, row features.Row) (string, error)
	// Info describes the loaded model
	Info() Info
}

// Info describes a loaded model
type Info struct {
	Name     string   `json:"name"`
	Source   string   `json:"source"`
	Accuracy float64  `json:"accuracy"`
	Author   string   `json:"author,omitempty"`
	Features []string `json:"features"`
	Classes  []string `json:"classes,omitempty"`
	// Digest identifies the exact model; two models with the same name and
	// source but different trees or columns have different digests
	Digest string `json:"digest"`
}

// RequiresCategorical reports whether the model reads any selector column
func (i Info) RequiresCategorical() bool {
	for _, f := range i.Features {
		if features.IsCategorical(f) {
			return true
		}
	}
	return false
}

// Options selects and configures a classifier
type Options struct {
	ModelPath string
	ModelURL  string
	Timeout   time.Duration
	// Columns sent to a remote model; defaults to the full record
	Columns []string
	// Accuracy reported for a remote model, which cannot describe itself.
	// Zero means unknown.
	Accuracy float64
}

// Open returns a remote classifier when a URL is configured, otherwise it
// loads the forest artifact from disk.
func Open(opts Options) (Classifier, error) {
	if opts.ModelURL != "" {
		var blank features.Row
		for _, col := range opts.Columns {
			if _, err := blank.Value(col); err != nil {
				return nil, err
			}
		}
		r := NewRemote(opts.ModelURL, opts.Timeout, opts.Columns)
		r.accuracy = opts.Accuracy
		return r, nil
	}
	if opts.ModelPath == "" {
		return nil, ErrNoModel
	}
	f, err := LoadForest(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", opts.ModelPath, err)
	}
	return f, nil
}
