package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/kartoza/downtime-predictor/internal/api"
	"github.com/kartoza/downtime-predictor/internal/cache"
	"github.com/kartoza/downtime-predictor/internal/config"
	"github.com/kartoza/downtime-predictor/internal/logger"
	"github.com/kartoza/downtime-predictor/internal/metrics"
	"github.com/kartoza/downtime-predictor/internal/prediction"
)

//go:embed static/*
var staticFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

const (
	defaultHeaderURL = "/static/internet.svg"
	customHeaderURL  = "/header-image"
)

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	svc        *prediction.Service
	cache      cache.Cache
	log        *slog.Logger
	httpServer *http.Server
	router     *mux.Router
	pages      *template.Template
}

// New creates a new Server around a prediction service. The cache is only
// held so Stop can close it; the service owns every lookup.
func New(cfg config.Config, svc *prediction.Service, c cache.Cache, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if c == nil {
		c = cache.Nop{}
	}

	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		cache:  c,
		log:    log,
		router: mux.NewRouter(),
		pages:  pages,
	}

	if cfg.HeaderImage != "" {
		if _, err := os.Stat(cfg.HeaderImage); err != nil {
			log.Warn("header_image_unavailable", "path", cfg.HeaderImage, "err", err)
			s.cfg.HeaderImage = ""
		}
	}

	s.setupRoutes()
	return s, nil
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(logger.AccessMiddleware(s.log))

	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.svc, s.cfg, s.log)
	apiHandler.RegisterRoutes(apiRouter)

	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Form
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/", s.handleSubmit).Methods("POST")
	s.router.HandleFunc("/localities", s.handleLocalities).Methods("GET")

	if s.cfg.HeaderImage != "" {
		s.router.HandleFunc(customHeaderURL, func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, s.cfg.HeaderImage)
		}).Methods("GET")
	}

	// Static files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		s.log.Warn("static_files_unavailable", "err", err)
		return
	}
	s.router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
}

func (s *Server) headerURL() string {
	if s.cfg.HeaderImage != "" {
		return customHeaderURL
	}
	return defaultHeaderURL
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info("server_listening", "url", fmt.Sprintf("http://localhost:%d", s.cfg.Port))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server and closes the stores
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	errs = append(errs, s.svc.History().Close(), s.cache.Close())
	return errors.Join(errs...)
}
