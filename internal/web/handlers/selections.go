package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/photo-report/internal/config"
	"github.com/kozaktomas/photo-report/internal/database"
	"github.com/kozaktomas/photo-report/internal/imagelist"
	"github.com/kozaktomas/photo-report/internal/pipeline"
	"github.com/kozaktomas/photo-report/internal/selection"
)

// Workflow is an open selection session: the records loaded when it was
// created and the user's include/image choices for them.
type Workflow struct {
	ID             string
	ProjectID      string
	MonitoringType string
	Project        database.Project
	Records        []database.Record
	Store          *selection.Store
	CreatedAt      time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

func (w *Workflow) touch(now time.Time) {
	w.mu.Lock()
	w.lastUsed = now
	w.mu.Unlock()
}

func (w *Workflow) idleSince(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastUsed)
}

// record returns the snapshot of a record in this workflow.
func (w *Workflow) record(id string) (database.Record, bool) {
	for _, r := range w.Records {
		if r.ID == id {
			return r, true
		}
	}
	return database.Record{}, false
}

// NewWorkflow loads the records of a project and opens a selection over
// them, seeded with the stored preferred image indexes.
func NewWorkflow(ctx context.Context, reader database.RecordReader, projectID, monitoringType string) (*Workflow, error) {
	project, err := reader.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	records, err := reader.ListRecords(ctx, database.RecordFilter{ProjectID: projectID, MonitoringType: monitoringType})
	if err != nil {
		return nil, err
	}

	candidates := make([]selection.Candidate, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, selection.Candidate{
			RecordID:       r.ID,
			ImageCount:     imagelist.Count(r),
			PreferredIndex: r.PreferredImageIndex,
		})
	}

	now := time.Now()
	return &Workflow{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		MonitoringType: monitoringType,
		Project:        *project,
		Records:        records,
		Store:          selection.Open(candidates),
		CreatedAt:      now,
		lastUsed:       now,
	}, nil
}

// SelectionManager keeps open workflows in memory.
type SelectionManager struct {
	workflows map[string]*Workflow
	mu        sync.RWMutex
}

// NewSelectionManager creates an empty selection manager.
func NewSelectionManager() *SelectionManager {
	return &SelectionManager{workflows: make(map[string]*Workflow)}
}

// Add registers a workflow.
func (m *SelectionManager) Add(w *Workflow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[w.ID] = w
}

// Get returns a workflow and marks it as used.
func (m *SelectionManager) Get(id string) *Workflow {
	m.mu.RLock()
	w := m.workflows[id]
	m.mu.RUnlock()
	if w != nil {
		w.touch(time.Now())
	}
	return w
}

// Remove closes a workflow. It reports whether the workflow existed.
func (m *SelectionManager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[id]; !ok {
		return false
	}
	delete(m.workflows, id)
	return true
}

// Len returns the number of open workflows.
func (m *SelectionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workflows)
}

// Prune closes workflows idle for longer than idle and returns their IDs.
func (m *SelectionManager) Prune(idle time.Duration) []string {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var closed []string
	for id, w := range m.workflows {
		if w.idleSince(now) > idle {
			delete(m.workflows, id)
			closed = append(closed, id)
		}
	}
	return closed
}

// SelectionHandler handles selection workflow endpoints
type SelectionHandler struct {
	config     *config.Config
	selections *SelectionManager
	jobs       *JobManager
	log        logrus.FieldLogger
}

// NewSelectionHandler creates a new selection handler
func NewSelectionHandler(cfg *config.Config, sm *SelectionManager, jm *JobManager, log logrus.FieldLogger) *SelectionHandler {
	return &SelectionHandler{
		config:     cfg,
		selections: sm,
		jobs:       jm,
		log:        log,
	}
}

// RecordView is a record as shown to the selection UI.
type RecordView struct {
	ID             string   `json:"id"`
	Area           string   `json:"area"`
	Workstation    string   `json:"workstation"`
	Timestamp      string   `json:"timestamp"`
	Images         []string `json:"images"`
	ImageCount     int      `json:"image_count"`
	PreferredIndex *int     `json:"preferred_image_index,omitempty"`
	Selectable     bool     `json:"selectable"`
	Included       bool     `json:"included"`
	ImageIndex     int      `json:"image_index"`
	CurrentImage   string   `json:"current_image,omitempty"`
}

func newRecordView(r database.Record) RecordView {
	images := imagelist.NormalizeRecord(r)
	return RecordView{
		ID:             r.ID,
		Area:           r.Area,
		Workstation:    r.Workstation,
		Timestamp:      pipeline.FormatTimestamp(r.MeasuredAt),
		Images:         images,
		ImageCount:     len(images),
		PreferredIndex: r.PreferredImageIndex,
	}
}

// WorkflowView is the JSON form of a workflow.
type WorkflowView struct {
	ID             string           `json:"id"`
	ProjectID      string           `json:"project_id"`
	MonitoringType string           `json:"monitoring_type"`
	Title          string           `json:"title"`
	Project        database.Project `json:"project"`
	Records        []RecordView     `json:"records"`
	IncludedCount  int              `json:"included_count"`
	EligibleCount  int              `json:"eligible_count"`
	CreatedAt      time.Time        `json:"created_at"`
}

func (h *SelectionHandler) view(w *Workflow) WorkflowView {
	records := make([]RecordView, 0, len(w.Records))
	for _, r := range w.Records {
		rv := newRecordView(r)
		if entry, ok := w.Store.Entry(r.ID); ok {
			rv.Selectable = true
			rv.Included = entry.Included
			rv.ImageIndex = entry.ImageIndex
			if rv.ImageCount > 0 {
				rv.CurrentImage = rv.Images[min(entry.ImageIndex, rv.ImageCount-1)]
			}
		}
		records = append(records, rv)
	}
	return WorkflowView{
		ID:             w.ID,
		ProjectID:      w.ProjectID,
		MonitoringType: w.MonitoringType,
		Title:          h.config.ReportType(w.MonitoringType).Title,
		Project:        w.Project,
		Records:        records,
		IncludedCount:  w.Store.IncludedCount(),
		EligibleCount:  len(pipeline.Eligible(w.Records, w.Store)),
		CreatedAt:      w.CreatedAt,
	}
}

// lookup resolves the {id} URL parameter, writing an error response on failure.
func (h *SelectionHandler) lookup(w http.ResponseWriter, r *http.Request) *Workflow {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing selection ID")
		return nil
	}
	wf := h.selections.Get(id)
	if wf == nil {
		respondError(w, http.StatusNotFound, "selection not found")
		return nil
	}
	return wf
}

// CreateSelectionRequest opens a workflow for one project and type.
type CreateSelectionRequest struct {
	ProjectID      string `json:"project_id"`
	MonitoringType string `json:"monitoring_type"`
}

// Create opens a new selection workflow
func (h *SelectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSelectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ProjectID == "" {
		respondError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if req.MonitoringType == "" {
		respondError(w, http.StatusBadRequest, "monitoring_type is required")
		return
	}

	reader, err := database.GetRecordReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, errDatabaseUnavailable)
		return
	}

	wf, err := NewWorkflow(r.Context(), reader, req.ProjectID, req.MonitoringType)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("project_id", sanitizeForLog(req.ProjectID)).Error("Failed to open selection")
		respondError(w, http.StatusInternalServerError, "failed to load records")
		return
	}

	h.selections.Add(wf)
	h.log.WithFields(logrus.Fields{
		"selection_id":    wf.ID,
		"project_id":      sanitizeForLog(wf.ProjectID),
		"monitoring_type": sanitizeForLog(wf.MonitoringType),
		"records":         len(wf.Records),
	}).Info("Selection opened")

	respondJSON(w, http.StatusCreated, h.view(wf))
}

// Get returns the current state of a workflow
func (h *SelectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	wf := h.lookup(w, r)
	if wf == nil {
		return
	}
	respondJSON(w, http.StatusOK, h.view(wf))
}

// RecordRequest names a record inside a workflow.
type RecordRequest struct {
	RecordID string `json:"record_id"`
	Delta    int    `json:"delta"`
}

// Toggle flips the inclusion of one record
func (h *SelectionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	wf := h.lookup(w, r)
	if wf == nil {
		return
	}
	var req RecordRequest
	if err := decodeJSON(w, r, &req); err != nil || req.RecordID == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	included, ok := wf.Store.Toggle(req.RecordID)
	if !ok {
		respondError(w, http.StatusNotFound, "record not in selection")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"record_id":      req.RecordID,
		"included":       included,
		"included_count": wf.Store.IncludedCount(),
	})
}

// SetAll includes or excludes every record
func (h *SelectionHandler) SetAll(w http.ResponseWriter, r *http.Request) {
	wf := h.lookup(w, r)
	if wf == nil {
		return
	}
	var req struct {
		Included *bool `json:"included"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Included == nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	wf.Store.SetAll(*req.Included)
	respondJSON(w, http.StatusOK, map[string]int{"included_count": wf.Store.IncludedCount()})
}

// Advance moves the chosen image of a record forward or backward, wrapping
// around at both ends
func (h *SelectionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	wf := h.lookup(w, r)
	if wf == nil {
		return
	}
	var req RecordRequest
	if err := decodeJSON(w, r, &req); err != nil || req.RecordID == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	rec, ok := wf.record(req.RecordID)
	if _, inStore := wf.Store.Entry(req.RecordID); !ok || !inStore {
		respondError(w, http.StatusNotFound, "record not in selection")
		return
	}

	images := imagelist.NormalizeRecord(rec)
	idx := wf.Store.Advance(req.RecordID, req.Delta, len(images))
	resp := map[string]any{
		"record_id":   req.RecordID,
		"image_index": idx,
	}
	if len(images) > 0 {
		resp["image"] = images[min(idx, len(images)-1)]
	}
	respondJSON(w, http.StatusOK, resp)
}

// SavePreferences persists the current image index of every record so the
// next workflow starts from it
func (h *SelectionHandler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	wf := h.lookup(w, r)
	if wf == nil {
		return
	}

	writer, err := database.GetRecordWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, errDatabaseUnavailable)
		return
	}

	saved := 0
	for _, entry := range wf.Store.Entries() {
		if err := writer.SetPreferredImageIndex(r.Context(), entry.RecordID, entry.ImageIndex); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			h.log.WithError(err).WithField("record_id", entry.RecordID).Error("Failed to save preferred image")
			respondError(w, http.StatusInternalServerError, "failed to save preferences")
			return
		}
		saved++
	}
	respondJSON(w, http.StatusOK, map[string]int{"saved": saved})
}

// Delete closes a workflow and cancels the report jobs started from it
func (h *SelectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.selections.Remove(id) {
		respondError(w, http.StatusNotFound, "selection not found")
		return
	}
	cancelled := h.jobs.CancelForSelection(id)
	h.log.WithFields(logrus.Fields{"selection_id": id, "cancelled_jobs": cancelled}).Info("Selection closed")
	respondJSON(w, http.StatusOK, map[string]any{"closed": true, "cancelled_jobs": cancelled})
}
