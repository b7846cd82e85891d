package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-report/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	selectionHandler := handlers.NewSelectionHandler(s.config, s.selections, s.jobManager, s.log)
	reportHandler := handlers.NewReportHandler(s.config, s.selections, s.jobManager, s.transcoder, s.log)
	recordsHandler := handlers.NewRecordsHandler(s.log)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Config
		r.Get("/config", configHandler.Get)

		// Records
		r.Get("/projects/{projectId}/records", recordsHandler.List)

		// Selection workflows
		r.Post("/selections", selectionHandler.Create)
		r.Get("/selections/{id}", selectionHandler.Get)
		r.Post("/selections/{id}/toggle", selectionHandler.Toggle)
		r.Post("/selections/{id}/all", selectionHandler.SetAll)
		r.Post("/selections/{id}/advance", selectionHandler.Advance)
		r.Post("/selections/{id}/preferences", selectionHandler.SavePreferences)
		r.Delete("/selections/{id}", selectionHandler.Delete)

		// Reports (long-running operations)
		r.Post("/reports", reportHandler.Start)
		r.Get("/reports/{jobId}", reportHandler.Status)
		r.Get("/reports/{jobId}/events", reportHandler.Events)
		r.Get("/reports/{jobId}/pages", reportHandler.Pages)
		r.Get("/reports/{jobId}/document", reportHandler.Document)
		r.Delete("/reports/{jobId}", reportHandler.Cancel)
	})
}
