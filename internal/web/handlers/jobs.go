package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/photo-report/internal/constants"
	"github.com/kozaktomas/photo-report/internal/database"
	"github.com/kozaktomas/photo-report/internal/pipeline"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ReportJobOptions are fixed when a report job is created.
type ReportJobOptions struct {
	SelectionID    string `json:"selection_id"`
	MonitoringType string `json:"monitoring_type"`
	Title          string `json:"title"`
	Prefix         string `json:"prefix"`
	Layout         string `json:"layout"`
	BatchSize      int    `json:"batch_size"`
}

// ReportJob is one background run of the photo pipeline.
type ReportJob struct {
	EventBroadcaster

	ID          string
	Options     ReportJobOptions
	Project     database.Project
	Status      JobStatus
	Progress    pipeline.Progress
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	result *pipeline.Result
}

// ReportJobView is a consistent copy of a job for JSON responses.
type ReportJobView struct {
	ID          string                 `json:"id"`
	ProjectID   string                 `json:"project_id"`
	Options     ReportJobOptions       `json:"options"`
	Status      JobStatus              `json:"status"`
	Progress    int                    `json:"progress"`
	StatusText  string                 `json:"status_text,omitempty"`
	Processed   int                    `json:"processed"`
	Total       int                    `json:"total"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	PhotoCount  int                    `json:"photo_count"`
	Degraded    []pipeline.Degradation `json:"degraded,omitempty"`
}

// View returns a snapshot of the job.
func (j *ReportJob) View() ReportJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	v := ReportJobView{
		ID:          j.ID,
		ProjectID:   j.Project.ID,
		Options:     j.Options,
		Status:      j.Status,
		Progress:    j.Progress.Percent,
		StatusText:  j.Progress.Status,
		Processed:   j.Progress.Processed,
		Total:       j.Progress.Total,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.result != nil {
		v.PhotoCount = len(j.result.Entries)
		v.Degraded = j.result.Degraded
	}
	return v
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ReportJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Result returns the pipeline output once the job completed.
func (j *ReportJob) Result() *pipeline.Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

// Cancel cancels a pending or running job. It reports false when the job
// had already finished.
func (j *ReportJob) Cancel() bool {
	if !j.finish(JobStatusCancelled, "", nil) {
		return false
	}
	j.EventBroadcaster.Cancel()
	return true
}

func (j *ReportJob) setProgress(p pipeline.Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobStatusPending {
		j.Status = JobStatusRunning
	}
	j.Progress = p
}

func (j *ReportJob) markRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobStatusPending {
		j.Status = JobStatusRunning
	}
}

// finish moves the job into a terminal state. Only the first call wins.
func (j *ReportJob) finish(status JobStatus, message string, result *pipeline.Result) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if isJobTerminal(j.Status) {
		return false
	}
	now := time.Now()
	j.Status = status
	j.Error = message
	j.CompletedAt = &now
	if result != nil {
		j.result = result
		j.Progress.Percent = 100
	}
	return true
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// setCancel must be called before the job goroutine starts.
func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancel = cancel
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages report jobs.
type JobManager struct {
	jobs map[string]*ReportJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ReportJob),
	}
}

// CreateJob registers a pending report job.
func (m *JobManager) CreateJob(id string, project database.Project, options ReportJobOptions) *ReportJob {
	job := &ReportJob{
		ID:        id,
		Options:   options,
		Project:   project,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ReportJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*ReportJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*ReportJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// CancelForSelection cancels every unfinished job started from a selection
// and returns how many were cancelled.
func (m *JobManager) CancelForSelection(selectionID string) int {
	n := 0
	for _, job := range m.ListJobs() {
		if job.Options.SelectionID == selectionID && job.Cancel() {
			n++
		}
	}
	return n
}

// Prune drops jobs that finished before the retention window.
func (m *JobManager) Prune(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, job := range m.jobs {
		job.mu.RLock()
		expired := job.CompletedAt != nil && job.CompletedAt.Before(cutoff)
		job.mu.RUnlock()
		if expired {
			delete(m.jobs, id)
			n++
		}
	}
	return n
}
