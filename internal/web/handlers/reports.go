package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/photo-report/internal/config"
	"github.com/kozaktomas/photo-report/internal/constants"
	"github.com/kozaktomas/photo-report/internal/document"
	"github.com/kozaktomas/photo-report/internal/layout"
	"github.com/kozaktomas/photo-report/internal/pipeline"
)

// ReportHandler handles report generation endpoints
type ReportHandler struct {
	config     *config.Config
	selections *SelectionManager
	jobManager *JobManager
	transcoder pipeline.Transcoder
	log        logrus.FieldLogger
}

// NewReportHandler creates a new report handler
func NewReportHandler(cfg *config.Config, sm *SelectionManager, jm *JobManager, t pipeline.Transcoder, log logrus.FieldLogger) *ReportHandler {
	return &ReportHandler{
		config:     cfg,
		selections: sm,
		jobManager: jm,
		transcoder: t,
		log:        log,
	}
}

// StartReportRequest represents a report start request
type StartReportRequest struct {
	SelectionID string `json:"selection_id"`
	Layout      string `json:"layout"`
	BatchSize   int    `json:"batch_size"`
}

// batchSize applies the configured default and the upper bound.
func (h *ReportHandler) batchSize(requested int) int {
	if requested <= 0 {
		requested = h.config.Pipeline.BatchSize
	}
	if requested <= 0 {
		requested = constants.DefaultBatchSize
	}
	return min(requested, constants.MaxBatchSize)
}

// layoutSpec parses a layout token, falling back to fallback when empty.
func layoutSpec(token, fallback string) (layout.Spec, error) {
	if token == "" {
		token = fallback
	}
	if token == "" {
		token = constants.DefaultLayout
	}
	return layout.ParseSpec(token)
}

// Start starts a new report job
func (h *ReportHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.SelectionID == "" {
		respondError(w, http.StatusBadRequest, "selection_id is required")
		return
	}

	wf := h.selections.Get(req.SelectionID)
	if wf == nil {
		respondError(w, http.StatusNotFound, "selection not found")
		return
	}

	spec, err := layoutSpec(req.Layout, h.config.Report.DefaultLayout)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	eligible := pipeline.Eligible(wf.Records, wf.Store)
	if len(eligible) == 0 {
		respondError(w, http.StatusBadRequest, pipeline.ErrEmptySelection.Error())
		return
	}

	rt := h.config.ReportType(wf.MonitoringType)
	job := h.jobManager.CreateJob(uuid.New().String(), wf.Project, ReportJobOptions{
		SelectionID:    wf.ID,
		MonitoringType: wf.MonitoringType,
		Title:          rt.Title,
		Prefix:         rt.Prefix,
		Layout:         spec.String(),
		BatchSize:      h.batchSize(req.BatchSize),
	})

	// The request context ends with this handler, the job must outlive it.
	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)
	go h.runReportJob(ctx, cancel, job, wf)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": string(JobStatusPending),
		"total":  len(eligible),
		"layout": spec.String(),
	})
}

// runReportJob runs the pipeline in the background
func (h *ReportHandler) runReportJob(ctx context.Context, cancel context.CancelFunc, job *ReportJob, wf *Workflow) {
	defer cancel()

	log := h.log.WithFields(logrus.Fields{"job_id": job.ID, "selection_id": wf.ID})
	job.markRunning()
	job.SendEvent(JobEvent{Type: "started", Message: "Report job started"})

	orchestrator := pipeline.New(h.transcoder, log)
	result, err := orchestrator.Run(ctx, wf.Records, wf.Store, pipeline.Options{
		BatchSize: job.Options.BatchSize,
		Prefix:    job.Options.Prefix,
		Pause:     h.config.Pipeline.BatchPause,
		OnProgress: func(p pipeline.Progress) {
			job.setProgress(p)
			job.SendEvent(JobEvent{Type: "progress", Data: p})
		},
	})

	switch {
	case errors.Is(err, pipeline.ErrCancelled):
		if job.finish(JobStatusCancelled, "", nil) {
			job.SendEvent(JobEvent{Type: string(JobStatusCancelled), Message: "Job was cancelled"})
		}
		log.Info("Report job cancelled")
	case err != nil:
		message := fmt.Sprintf("report generation failed: %v", err)
		if job.finish(JobStatusFailed, message, nil) {
			job.SendEvent(JobEvent{Type: string(JobStatusFailed), Message: message})
		}
		log.WithError(err).Error("Report job failed")
	case len(result.Entries) == 0:
		message := pipeline.ErrEmptySelection.Error()
		if job.finish(JobStatusFailed, message, nil) {
			job.SendEvent(JobEvent{Type: string(JobStatusFailed), Message: message})
		}
		log.Warn("Report job had nothing to process")
	default:
		if job.finish(JobStatusCompleted, "", result) {
			job.SendEvent(JobEvent{Type: string(JobStatusCompleted), Data: job.View()})
		}
		log.WithFields(logrus.Fields{
			"photos":   len(result.Entries),
			"degraded": len(result.Degraded),
		}).Info("Report job completed")
	}
}

// lookupJob resolves the {jobId} URL parameter, writing an error response on failure.
func (h *ReportHandler) lookupJob(w http.ResponseWriter, r *http.Request) *ReportJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// completedResult returns the job result or writes 409 when the job has not completed.
func completedResult(w http.ResponseWriter, job *ReportJob) *pipeline.Result {
	result := job.Result()
	if job.GetStatus() != JobStatusCompleted || result == nil {
		respondError(w, http.StatusConflict, "report job has not completed")
		return nil
	}
	return result
}

// Status returns the status of a report job
func (h *ReportHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.View())
}

// Events streams job events via SSE
func (h *ReportHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*ReportJob).View()
		},
	)
}

// Cancel cancels a report job
func (h *ReportHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	if !job.Cancel() {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// PagesResponse is the paginated result of a completed job.
type PagesResponse struct {
	Layout     string        `json:"layout"`
	TotalPages int           `json:"total_pages"`
	PhotoCount int           `json:"photo_count"`
	Pages      []layout.Page `json:"pages"`
}

// Pages paginates a completed job, optionally with another layout
func (h *ReportHandler) Pages(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	result := completedResult(w, job)
	if result == nil {
		return
	}

	spec, err := layoutSpec(r.URL.Query().Get("layout"), job.Options.Layout)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	pages, err := layout.Paginate(result.Entries, spec)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, PagesResponse{
		Layout:     spec.String(),
		TotalPages: len(pages),
		PhotoCount: len(result.Entries),
		Pages:      pages,
	})
}

// Document renders a completed job as a printable HTML document
func (h *ReportHandler) Document(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	result := completedResult(w, job)
	if result == nil {
		return
	}

	query := r.URL.Query()
	spec, err := layoutSpec(query.Get("layout"), job.Options.Layout)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orientation := query.Get("orientation")
	if orientation == "" {
		orientation = h.config.Report.Orientation
	}

	pages, err := layout.Paginate(result.Entries, spec)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := job.View()
	generated := time.Now()
	if view.CompletedAt != nil {
		generated = *view.CompletedAt
	}

	doc := document.Document{
		Header: document.Header{
			ProjectName: job.Project.Name,
			Client:      job.Project.Client,
			Location:    job.Project.Location,
			TypeTitle:   job.Options.Title,
			GeneratedAt: generated,
		},
		Spec:     spec,
		Geometry: layout.DefaultGeometry(layout.ParseOrientation(orientation)),
		Pages:    pages,
	}

	var buf bytes.Buffer
	if err := document.Render(&buf, doc); err != nil {
		h.log.WithError(err).WithField("job_id", job.ID).Error("Failed to render report")
		respondError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if query.Get("download") == "1" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report-%s.html"`, job.Options.Prefix))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
