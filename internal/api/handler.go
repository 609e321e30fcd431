package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/kartoza/downtime-predictor/internal/classifier"
	"github.com/kartoza/downtime-predictor/internal/config"
	"github.com/kartoza/downtime-predictor/internal/features"
	"github.com/kartoza/downtime-predictor/internal/history"
	"github.com/kartoza/downtime-predictor/internal/models"
	"github.com/kartoza/downtime-predictor/internal/prediction"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	maxBodyBytes        = 1 << 16
)

// Handler provides HTTP API endpoints
type Handler struct {
	svc *prediction.Service
	cfg config.Config
	log *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc *prediction.Service, cfg config.Config, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		svc: svc,
		cfg: cfg,
		log: log,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")
	r.HandleFunc("/catalog", h.handleCatalog).Methods("GET")

	// Predictions
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")
	r.HandleFunc("/predictions", h.handleListPredictions).Methods("GET")
	r.HandleFunc("/predictions/{id}", h.handleGetPrediction).Methods("GET")
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("encode_response_error", "err", err)
	}
}

// respondError sends a JSON error response
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := models.InfoResponse{
		Version:             h.cfg.Version,
		RequiresCategorical: h.svc.RequiresCategorical(),
		CacheEnabled:        h.svc.CacheEnabled(),
		HistoryEnabled:      h.svc.HistoryEnabled(),
	}
	if info, ok := h.svc.ModelInfo(); ok {
		resp.ModelLoaded = true
		resp.Model = &info
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := h.svc.Catalog()
	h.respondJSON(w, http.StatusOK, models.CatalogResponse{
		Title:   cat.Title,
		Cities:  cat.Cities,
		Weather: cat.Weather,
		Fields:  cat.Fields,
	})
}

// handlePredict runs one prediction from a JSON body
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.Predict(r.Context(), req.Input)
	if err != nil {
		var verr *features.ValidationError
		switch {
		case errors.As(err, &verr):
			h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid input", Fields: verr.Fields})
		case errors.Is(err, classifier.ErrNoModel):
			h.respondError(w, http.StatusServiceUnavailable, "model unavailable")
		default:
			h.log.Error("predict_error", "err", err)
			h.respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	h.respondJSON(w, http.StatusOK, models.NewPredictResponse(res))
}

func (h *Handler) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	recs, err := h.svc.History().Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("history_recent_error", "err", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if recs == nil {
		recs = []*history.Record{}
	}
	h.respondJSON(w, http.StatusOK, models.HistoryResponse{Count: len(recs), Predictions: recs})
}

func (h *Handler) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.svc.History().Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Error("history_get_error", "id", id, "err", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	h.respondJSON(w, http.StatusOK, rec)
}
