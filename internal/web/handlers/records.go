package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/photo-report/internal/database"
)

// RecordsHandler lists monitoring records
type RecordsHandler struct {
	log logrus.FieldLogger
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(log logrus.FieldLogger) *RecordsHandler {
	return &RecordsHandler{log: log}
}

// RecordsResponse is the record list of a project.
type RecordsResponse struct {
	Project database.Project `json:"project"`
	Records []RecordView     `json:"records"`
	Count   int              `json:"count"`
}

// List returns the records of a project with their normalized image lists
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	if projectID == "" {
		respondError(w, http.StatusBadRequest, "missing project ID")
		return
	}

	reader, err := database.GetRecordReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, errDatabaseUnavailable)
		return
	}

	project, err := reader.GetProject(r.Context(), projectID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("project_id", sanitizeForLog(projectID)).Error("Failed to load project")
		respondError(w, http.StatusInternalServerError, "failed to load project")
		return
	}

	records, err := reader.ListRecords(r.Context(), database.RecordFilter{
		ProjectID:      projectID,
		MonitoringType: r.URL.Query().Get("type"),
	})
	if err != nil {
		h.log.WithError(err).WithField("project_id", sanitizeForLog(projectID)).Error("Failed to list records")
		respondError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		rv := newRecordView(rec)
		rv.Selectable = rv.ImageCount > 0
		views = append(views, rv)
	}
	respondJSON(w, http.StatusOK, RecordsResponse{Project: *project, Records: views, Count: len(views)})
}
