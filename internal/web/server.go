// Package web serves the report HTTP API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/photo-report/internal/config"
	"github.com/kozaktomas/photo-report/internal/constants"
	"github.com/kozaktomas/photo-report/internal/pipeline"
	"github.com/kozaktomas/photo-report/internal/web/handlers"
	"github.com/kozaktomas/photo-report/internal/web/middleware"
)

// janitorInterval is how often idle selections and old jobs are dropped.
const janitorInterval = 10 * time.Minute

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	jobManager *handlers.JobManager
	selections *handlers.SelectionManager
	transcoder pipeline.Transcoder
	log        logrus.FieldLogger
	stop       context.CancelFunc
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, transcoder pipeline.Transcoder, log logrus.FieldLogger) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:     cfg,
		router:     r,
		jobManager: handlers.NewJobManager(),
		selections: handlers.NewSelectionManager(),
		transcoder: transcoder,
		log:        log,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams stay open for the whole job
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and the cleanup loop
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.janitor(ctx)

	s.log.WithField("addr", s.httpServer.Addr).Info("Starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown cancels running report jobs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down web server")

	if s.stop != nil {
		s.stop()
	}
	for _, job := range s.jobManager.ListJobs() {
		job.Cancel()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) janitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup closes idle selections (cancelling their jobs) and drops old finished jobs.
func (s *Server) cleanup() {
	closed := s.selections.Prune(constants.SelectionIdleTimeout)
	for _, id := range closed {
		s.jobManager.CancelForSelection(id)
	}
	pruned := s.jobManager.Prune(constants.FinishedJobRetention)
	if len(closed) > 0 || pruned > 0 {
		s.log.WithFields(logrus.Fields{
			"selections_closed": len(closed),
			"jobs_pruned":       pruned,
		}).Info("Cleaned up idle state")
	}
}
