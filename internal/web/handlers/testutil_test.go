package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-report/internal/config"
	"github.com/kozaktomas/photo-report/internal/database"
	"github.com/kozaktomas/photo-report/internal/database/mock"
	"github.com/kozaktomas/photo-report/internal/logging"
	"github.com/kozaktomas/photo-report/internal/transcode"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{BatchSize: 2},
		Report:   config.ReportConfig{DefaultLayout: "2x4", Orientation: "portrait"},
		Types: config.ReportTypesConfig{Types: map[string]config.ReportType{
			"calor": {Key: "calor", Title: "Estrés Térmico", Prefix: "CAL"},
			"ruido": {Key: "ruido", Title: "Ruido", Prefix: "RUI"},
		}},
	}
}

// fakeTranscoder turns every URL into a fake data URI. Sources listed in
// fail fall back to the URL. block makes every call wait for ctx.
type fakeTranscoder struct {
	fail  map[string]bool
	block bool
	calls atomic.Int32
}

func (f *fakeTranscoder) Transcode(ctx context.Context, src string) transcode.Result {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return transcode.Result{Source: src, Degraded: true, Reason: transcode.ReasonCancelled, Err: ctx.Err()}
	}
	if f.fail[src] {
		return transcode.Result{Source: src, Degraded: true, Reason: transcode.ReasonFetch}
	}
	return transcode.Result{Source: "data:image/jpeg;base64," + strings.TrimPrefix(src, "http://img/")}
}

// setupStore registers a mock record store holding project p1 with three
// calor records (R3 has no images) and one ruido record.
func setupStore(t *testing.T) *mock.MockRecordStore {
	t.Helper()
	database.ResetBackends()
	t.Cleanup(database.ResetBackends)

	store := mock.NewMockRecordStore()
	store.AddProject(database.Project{ID: "p1", Name: "Planta Norte", Client: "ACME", Location: "Bilbao"})

	t1 := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t1.Add(2 * time.Hour)
	one := 1
	store.AddRecord(database.Record{
		ID: "R1", ProjectID: "p1", MonitoringType: "calor", Area: "Hornos", Workstation: "Operario 1",
		MeasuredAt: &t1, ImageField: `["http://img/a1.jpg","http://img/a2.jpg"]`, PreferredImageIndex: &one,
	})
	store.AddRecord(database.Record{
		ID: "R2", ProjectID: "p1", MonitoringType: "calor", Area: "Almacén",
		MeasuredAt: &t2, ImageField: "http://img/b1.jpg",
	})
	store.AddRecord(database.Record{
		ID: "R3", ProjectID: "p1", MonitoringType: "calor", Area: "Oficina",
		MeasuredAt: &t3, ImageField: nil,
	})
	store.AddRecord(database.Record{
		ID: "N1", ProjectID: "p1", MonitoringType: "ruido", Area: "Prensa",
		MeasuredAt: &t1, ImageField: []any{"http://img/n1.jpg"},
	})

	database.RegisterPostgresBackend(func() database.RecordWriter { return store })
	return store
}

// testHandlers wires the selection and report handlers around shared managers.
func testHandlers(t *testing.T, tr *fakeTranscoder) (*SelectionHandler, *ReportHandler) {
	t.Helper()
	cfg := testConfig()
	sm := NewSelectionManager()
	jm := NewJobManager()
	log := logging.Discard()
	return NewSelectionHandler(cfg, sm, jm, log), NewReportHandler(cfg, sm, jm, tr, log)
}

// openSelection creates a workflow for project p1 / calor and returns its view.
func openSelection(t *testing.T, h *SelectionHandler) WorkflowView {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/selections",
		strings.NewReader(`{"project_id":"p1","monitoring_type":"calor"}`))
	recorder := httptest.NewRecorder()
	h.Create(recorder, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	var view WorkflowView
	parseJSONResponse(t, recorder, &view)
	return view
}

// jsonRequest builds a request with a JSON body and chi URL parameters.
func jsonRequest(method, path, body string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	return requestWithChiParams(req, params)
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// waitForStatus polls a job until it reaches a terminal state.
func waitForStatus(t *testing.T, job *ReportJob) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := job.GetStatus(); isJobTerminal(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish, status %s", job.ID, job.GetStatus())
	return ""
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
