package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/kozaktomas/photo-report/internal/database"
	"github.com/kozaktomas/photo-report/internal/pipeline"
)

func TestReportJob_Lifecycle(t *testing.T) {
	m := NewJobManager()
	job := m.CreateJob("j1", database.Project{ID: "p1"}, ReportJobOptions{SelectionID: "s1", Prefix: "CAL"})

	if job.GetStatus() != JobStatusPending {
		t.Fatalf("expected pending, got %s", job.GetStatus())
	}

	job.setProgress(pipeline.Progress{Percent: 50, Status: "Processed 1 of 2 photos", Processed: 1, Total: 2})
	if job.GetStatus() != JobStatusRunning {
		t.Errorf("expected progress to mark the job running, got %s", job.GetStatus())
	}

	result := &pipeline.Result{Entries: []pipeline.PhotoEntry{{Code: "CAL-01"}, {Code: "CAL-02"}}}
	if !job.finish(JobStatusCompleted, "", result) {
		t.Fatal("expected first finish to win")
	}
	if job.finish(JobStatusFailed, "late failure", nil) {
		t.Error("expected terminal status to be final")
	}
	if job.Cancel() {
		t.Error("expected Cancel on a finished job to report false")
	}

	view := job.View()
	if view.Status != JobStatusCompleted || view.Progress != 100 || view.PhotoCount != 2 || view.Error != "" {
		t.Errorf("unexpected view %+v", view)
	}
	if view.CompletedAt == nil {
		t.Error("expected completion time")
	}
}

func TestReportJob_CancelStopsContext(t *testing.T) {
	m := NewJobManager()
	job := m.CreateJob("j1", database.Project{}, ReportJobOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)

	listener := job.AddListener()
	defer job.RemoveListener(listener)

	if !job.Cancel() {
		t.Fatal("expected pending job to be cancellable")
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("expected job context to be cancelled")
	}

	select {
	case ev := <-listener:
		if ev.Type != "cancelled" {
			t.Errorf("expected cancelled event, got %s", ev.Type)
		}
	default:
		t.Error("expected a cancelled event")
	}
	if job.GetStatus() != JobStatusCancelled {
		t.Errorf("expected cancelled status, got %s", job.GetStatus())
	}
}

func TestEventBroadcaster_DropsWhenFull(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()
	for range cap(ch) + 5 {
		b.SendEvent(JobEvent{Type: "progress"})
	}
	if len(ch) != cap(ch) {
		t.Errorf("expected a full buffer, got %d of %d", len(ch), cap(ch))
	}
	b.RemoveListener(ch)
	if _, ok := <-drain(ch); ok {
		t.Error("expected channel to be closed after RemoveListener")
	}
}

// drain empties a closed channel and returns it.
func drain(ch chan JobEvent) chan JobEvent {
	for len(ch) > 0 {
		<-ch
	}
	return ch
}

func TestJobManager_CancelForSelectionAndPrune(t *testing.T) {
	m := NewJobManager()
	a := m.CreateJob("a", database.Project{}, ReportJobOptions{SelectionID: "s1"})
	b := m.CreateJob("b", database.Project{}, ReportJobOptions{SelectionID: "s1"})
	c := m.CreateJob("c", database.Project{}, ReportJobOptions{SelectionID: "s2"})
	b.finish(JobStatusCompleted, "", &pipeline.Result{})

	if n := m.CancelForSelection("s1"); n != 1 {
		t.Errorf("expected 1 cancelled job, got %d", n)
	}
	if a.GetStatus() != JobStatusCancelled || b.GetStatus() != JobStatusCompleted || c.GetStatus() != JobStatusPending {
		t.Errorf("unexpected statuses %s/%s/%s", a.GetStatus(), b.GetStatus(), c.GetStatus())
	}

	old := time.Now().Add(-2 * time.Hour)
	b.mu.Lock()
	b.CompletedAt = &old
	b.mu.Unlock()

	if n := m.Prune(time.Hour); n != 1 {
		t.Errorf("expected 1 pruned job, got %d", n)
	}
	if m.GetJob("b") != nil || m.GetJob("a") == nil || m.GetJob("c") == nil {
		t.Error("expected only the expired job to be pruned")
	}

	m.DeleteJob("a")
	if len(m.ListJobs()) != 1 {
		t.Errorf("expected 1 job left, got %d", len(m.ListJobs()))
	}
}
