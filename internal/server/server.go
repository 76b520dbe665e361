// Package server provides the HTTP API for titlenorm.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/titlenorm/internal/config"
	"github.com/hyperjump/titlenorm/internal/extract"
	"github.com/hyperjump/titlenorm/internal/metrics"
	"github.com/hyperjump/titlenorm/pkg/standardizer"
)

// maxUploadBytes bounds multipart uploads to /api/v1/match/file.
const maxUploadBytes = 32 << 20

// Server is the HTTP server for the titlenorm API.
type Server struct {
	std       *standardizer.Standardizer
	extractor *extract.Extractor
	metrics   *metrics.Metrics
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
	maxUpload int64
}

// NewServer creates a server. m may be nil, in which case /metrics is not mounted.
func NewServer(std *standardizer.Standardizer, m *metrics.Metrics, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		std:       std,
		extractor: extract.NewExtractor(),
		metrics:   m,
		config:    cfg,
		logger:    logger,
		maxUpload: maxUploadBytes,
	}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if s.metrics != nil {
		r.Use(Metrics(s.metrics))
	}
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/match", s.handleMatch)
		r.Post("/match/file", s.handleMatchFile)
		r.Post("/standardize", s.handleStandardize)
		r.Get("/lookup", s.handleLookup)
		r.Post("/index/reload", s.handleReload)
		r.Get("/status", s.handleStatus)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Delete("/runs/{id}", s.handleDeleteRun)
	})
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
