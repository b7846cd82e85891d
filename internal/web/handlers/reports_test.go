package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/photo-report/internal/constants"
	"github.com/kozaktomas/photo-report/internal/pipeline"
	"github.com/kozaktomas/photo-report/internal/transcode"
)

// startReport opens a selection and starts a report job for it.
func startReport(t *testing.T, h *SelectionHandler, rh *ReportHandler, body string) *ReportJob {
	t.Helper()
	view := openSelection(t, h)
	body = strings.ReplaceAll(body, "{sel}", view.ID)

	recorder := httptest.NewRecorder()
	rh.Start(recorder, jsonRequest(http.MethodPost, "/api/v1/reports", body, nil))
	assertStatusCode(t, recorder, http.StatusAccepted)

	var resp map[string]any
	parseJSONResponse(t, recorder, &resp)
	job := rh.jobManager.GetJob(resp["job_id"].(string))
	if job == nil {
		t.Fatalf("job %v not registered", resp["job_id"])
	}
	return job
}

func TestReportHandler_Start_RunsPipeline(t *testing.T) {
	setupStore(t)
	tr := &fakeTranscoder{fail: map[string]bool{"http://img/b1.jpg": true}}
	h, rh := testHandlers(t, tr)

	job := startReport(t, h, rh, `{"selection_id":"{sel}","layout":"1x1"}`)
	if status := waitForStatus(t, job); status != JobStatusCompleted {
		t.Fatalf("expected completed job, got %s (%s)", status, job.View().Error)
	}

	result := job.Result()
	want := []pipeline.PhotoEntry{
		{ImageSource: "data:image/jpeg;base64,a2.jpg", Area: "Hornos", Workstation: "Operario 1", Code: "CAL-01", Timestamp: "05/03/2024 14:07"},
		{ImageSource: "http://img/b1.jpg", Area: "Almacén", Code: "CAL-02", Timestamp: "05/03/2024 15:07"},
	}
	if len(result.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(result.Entries))
	}
	for i := range want {
		if result.Entries[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], result.Entries[i])
		}
	}

	view := job.View()
	if view.Progress != 100 || view.PhotoCount != 2 || view.Options.Layout != "1x1" {
		t.Errorf("unexpected job view %+v", view)
	}
	if len(view.Degraded) != 1 || view.Degraded[0].Reason != transcode.ReasonFetch {
		t.Errorf("expected one fetch degradation, got %+v", view.Degraded)
	}
}

func TestReportHandler_Start_Errors(t *testing.T) {
	setupStore(t)
	h, rh := testHandlers(t, &fakeTranscoder{})
	view := openSelection(t, h)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"invalid body", `{`, http.StatusBadRequest, errInvalidRequestBody},
		{"missing selection", `{}`, http.StatusBadRequest, "selection_id is required"},
		{"unknown selection", `{"selection_id":"nope"}`, http.StatusNotFound, "selection not found"},
		{"bad layout", `{"selection_id":"` + view.ID + `","layout":"0x3"}`, http.StatusBadRequest, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			rh.Start(recorder, jsonRequest(http.MethodPost, "/api/v1/reports", tc.body, nil))
			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantError != "" {
				assertJSONError(t, recorder, tc.wantError)
			}
		})
	}

	t.Run("empty selection", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		h.SetAll(recorder, jsonRequest(http.MethodPost, "/", `{"included":false}`, map[string]string{"id": view.ID}))
		assertStatusCode(t, recorder, http.StatusOK)

		recorder = httptest.NewRecorder()
		rh.Start(recorder, jsonRequest(http.MethodPost, "/api/v1/reports", `{"selection_id":"`+view.ID+`"}`, nil))
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, pipeline.ErrEmptySelection.Error())
		if n := len(rh.jobManager.ListJobs()); n != 0 {
			t.Errorf("expected no job to be created, got %d", n)
		}
	})
}

func TestReportHandler_BatchSize(t *testing.T) {
	rh := &ReportHandler{config: testConfig()}

	tests := []struct {
		requested int
		want      int
	}{
		{0, 2},
		{-4, 2},
		{7, 7},
		{constants.MaxBatchSize + 10, constants.MaxBatchSize},
	}
	for _, tc := range tests {
		if got := rh.batchSize(tc.requested); got != tc.want {
			t.Errorf("batchSize(%d) = %d, want %d", tc.requested, got, tc.want)
		}
	}
}

func TestReportHandler_StatusAndCancel(t *testing.T) {
	setupStore(t)
	h, rh := testHandlers(t, &fakeTranscoder{block: true})
	job := startReport(t, h, rh, `{"selection_id":"{sel}"}`)
	params := map[string]string{"jobId": job.ID}

	recorder := httptest.NewRecorder()
	rh.Status(recorder, jsonRequest(http.MethodGet, "/", "", params))
	assertStatusCode(t, recorder, http.StatusOK)
	var view ReportJobView
	parseJSONResponse(t, recorder, &view)
	if view.ID != job.ID || view.Options.Layout != "2x4" || view.Options.Prefix != "CAL" {
		t.Errorf("unexpected status %+v", view)
	}

	recorder = httptest.NewRecorder()
	rh.Pages(recorder, jsonRequest(http.MethodGet, "/", "", params))
	assertStatusCode(t, recorder, http.StatusConflict)

	recorder = httptest.NewRecorder()
	rh.Cancel(recorder, jsonRequest(http.MethodDelete, "/", "", params))
	assertStatusCode(t, recorder, http.StatusOK)
	if status := waitForStatus(t, job); status != JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", status)
	}

	recorder = httptest.NewRecorder()
	rh.Cancel(recorder, jsonRequest(http.MethodDelete, "/", "", params))
	assertStatusCode(t, recorder, http.StatusConflict)

	recorder = httptest.NewRecorder()
	rh.Status(recorder, jsonRequest(http.MethodGet, "/", "", map[string]string{"jobId": "missing"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestReportHandler_Pages(t *testing.T) {
	setupStore(t)
	h, rh := testHandlers(t, &fakeTranscoder{})
	job := startReport(t, h, rh, `{"selection_id":"{sel}","layout":"1x1"}`)
	waitForStatus(t, job)

	tests := []struct {
		query      string
		wantStatus int
		wantLayout string
		wantPages  int
	}{
		{"", http.StatusOK, "1x1", 2},
		{"?layout=2x2", http.StatusOK, "2x2", 1},
		{"?layout=abc", http.StatusBadRequest, "", 0},
		{"?layout=100000x100000", http.StatusBadRequest, "", 0},
		{"?layout=3037000500x3037000500", http.StatusBadRequest, "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			rh.Pages(recorder, jsonRequest(http.MethodGet, "/pages"+tc.query, "", map[string]string{"jobId": job.ID}))
			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantStatus != http.StatusOK {
				return
			}
			var resp PagesResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Layout != tc.wantLayout || resp.TotalPages != tc.wantPages || resp.PhotoCount != 2 {
				t.Errorf("unexpected pages response %+v", resp)
			}
			if resp.Pages[0].Entries[0].Code != "CAL-01" {
				t.Errorf("expected first code CAL-01, got %s", resp.Pages[0].Entries[0].Code)
			}
		})
	}
}

func TestReportHandler_DocumentRejectsOversizedLayout(t *testing.T) {
	setupStore(t)
	h, rh := testHandlers(t, &fakeTranscoder{})
	job := startReport(t, h, rh, `{"selection_id":"{sel}"}`)
	waitForStatus(t, job)

	recorder := httptest.NewRecorder()
	rh.Document(recorder, jsonRequest(http.MethodGet, "/document?layout=100000x100000", "", map[string]string{"jobId": job.ID}))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid layout 100000x100000: at most 10x10")
}

func TestReportHandler_Document(t *testing.T) {
	setupStore(t)
	h, rh := testHandlers(t, &fakeTranscoder{})
	job := startReport(t, h, rh, `{"selection_id":"{sel}"}`)
	waitForStatus(t, job)

	recorder := httptest.NewRecorder()
	rh.Document(recorder, jsonRequest(http.MethodGet, "/document?layout=1x1&download=1", "", map[string]string{"jobId": job.ID}))
	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "text/html; charset=utf-8")

	if cd := recorder.Header().Get("Content-Disposition"); !strings.Contains(cd, "report-CAL.html") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	body := recorder.Body.String()
	for _, want := range []string{"Planta Norte", "Estrés Térmico", "CAL-02", "Page 2 of 2", "data:image/jpeg;base64,a2.jpg"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected document to contain %q", want)
		}
	}
}
