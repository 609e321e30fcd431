package models

import (
	"time"

	"github.com/kartoza/downtime-predictor/internal/catalog"
	"github.com/kartoza/downtime-predictor/internal/classifier"
	"github.com/kartoza/downtime-predictor/internal/display"
	"github.com/kartoza/downtime-predictor/internal/features"
	"github.com/kartoza/downtime-predictor/internal/history"
	"github.com/kartoza/downtime-predictor/internal/prediction"
)

// PredictRequest is the JSON body of a prediction request
type PredictRequest struct {
	features.Input
}

// PredictResponse contains a single prediction
type PredictResponse struct {
	ID        string        `json:"id"`
	Label     string        `json:"label"`
	Style     display.Style `json:"style"`
	Cached    bool          `json:"cached"`
	CreatedAt time.Time     `json:"created_at"`
	Features  features.Row  `json:"features"`
}

// NewPredictResponse converts a service result
func NewPredictResponse(res *prediction.Result) PredictResponse {
	return PredictResponse{
		ID:        res.ID,
		Label:     res.Label,
		Style:     res.Style,
		Cached:    res.Cached,
		CreatedAt: res.CreatedAt,
		Features:  res.Row,
	}
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// InfoResponse describes the running service
type InfoResponse struct {
	Version             string           `json:"version"`
	ModelLoaded         bool             `json:"model_loaded"`
	Model               *classifier.Info `json:"model,omitempty"`
	RequiresCategorical bool             `json:"requires_categorical"`
	CacheEnabled        bool             `json:"cache_enabled"`
	HistoryEnabled      bool             `json:"history_enabled"`
}

// CatalogResponse lists the form choices and numeric bounds
type CatalogResponse struct {
	Title   string                 `json:"title"`
	Cities  []catalog.City         `json:"cities"`
	Weather []string               `json:"weather"`
	Fields  []catalog.NumericField `json:"fields"`
}

// HistoryResponse lists recent predictions, newest first
type HistoryResponse struct {
	Count       int               `json:"count"`
	Predictions []*history.Record `json:"predictions"`
}
