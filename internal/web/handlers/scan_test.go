package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jvanek/facegroups/internal/detect"
)

func writePhoto(t *testing.T, folder, name string) string {
	t.Helper()
	path := filepath.Join(folder, name)
	if err := os.WriteFile(path, []byte(name), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanHandler_FolderInfo_Unscanned(t *testing.T) {
	app, _ := newTestApp(t)
	handler := NewScanHandler(app)

	folder := t.TempDir()
	writePhoto(t, folder, "one.jpg")

	req := httptest.NewRequest("GET", "/api/v1/folder?folder="+folder, nil)
	recorder := httptest.NewRecorder()

	handler.FolderInfo(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var info FolderInfoResponse
	parseJSONResponse(t, recorder, &info)
	if info.Scanned || !info.NeedsRescan {
		t.Errorf("unscanned folder info = %+v", info)
	}
	if info.Images != 1 || info.NewFiles != 1 {
		t.Errorf("image counts = %+v", info)
	}
}

func TestScanHandler_FolderInfo_Missing(t *testing.T) {
	app, _ := newTestApp(t)
	handler := NewScanHandler(app)

	req := httptest.NewRequest("GET", "/api/v1/folder?folder=/no/such/dir", nil)
	recorder := httptest.NewRecorder()

	handler.FolderInfo(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestScanHandler_Start_MissingFolder(t *testing.T) {
	app, _ := newTestApp(t)
	handler := NewScanHandler(app)

	body, _ := json.Marshal(ScanStartRequest{Folder: "/no/such/dir"})
	req := httptest.NewRequest("POST", "/api/v1/scan", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "folder does not exist")
}

func TestScanHandler_Start_CompletesJob(t *testing.T) {
	app, detector := newTestApp(t)
	handler := NewScanHandler(app)

	folder := t.TempDir()
	img := writePhoto(t, folder, "one.jpg")
	detector.AddImage(img, detect.Detection{Quality: 0.9, Confidence: 0.99, Embedding: []float32{1, 0}})

	body, _ := json.Marshal(ScanStartRequest{Folder: folder})
	req := httptest.NewRequest("POST", "/api/v1/scan", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)

	var started map[string]string
	parseJSONResponse(t, recorder, &started)
	jobID := started["job_id"]
	if jobID == "" {
		t.Fatal("no job id in response")
	}

	job := waitForJob(t, handler, jobID)
	if job.Status != JobStatusCompleted {
		t.Fatalf("job = %+v, want completed", job)
	}
	if job.Faces != 1 || job.Groups != 1 {
		t.Errorf("job counts = %d faces / %d groups", job.Faces, job.Groups)
	}

	// The scan result is on disk.
	data, err := app.Store.LoadAggregate(folder)
	if err != nil || data == nil || !data.ScanComplete {
		t.Errorf("persisted aggregate = (%+v, %v)", data, err)
	}
}

func TestScanHandler_Start_ConflictWhileClaimed(t *testing.T) {
	app, _ := newTestApp(t)
	handler := NewScanHandler(app)

	folder := t.TempDir()
	writePhoto(t, folder, "one.jpg")

	// A winner that has claimed the folder but whose job goroutine has not
	// started yet must already block other starts.
	if !app.orchestrator(folder).TryStart() {
		t.Fatal("claiming the folder orchestrator failed")
	}

	body, _ := json.Marshal(ScanStartRequest{Folder: folder})
	req := httptest.NewRequest("POST", "/api/v1/scan", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, "a scan is already running for this folder")
}

// waitForJob polls the status endpoint until the job reaches a terminal state.
func waitForJob(t *testing.T, handler *ScanHandler, jobID string) *ScanJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest("GET", "/api/v1/scan/"+jobID, nil)
		req = requestWithChiParams(req, map[string]string{"jobId": jobID})
		recorder := httptest.NewRecorder()

		handler.Status(recorder, req)
		assertStatusCode(t, recorder, http.StatusOK)

		var job ScanJob
		parseJSONResponse(t, recorder, &job)
		if job.Status == JobStatusCompleted || job.Status == JobStatusFailed {
			return &job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return nil
}

func TestScanHandler_Status_UnknownJob(t *testing.T) {
	app, _ := newTestApp(t)
	handler := NewScanHandler(app)

	req := httptest.NewRequest("GET", "/api/v1/scan/ghost", nil)
	req = requestWithChiParams(req, map[string]string{"jobId": "ghost"})
	recorder := httptest.NewRecorder()

	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "job not found")
}

func TestJobSnapshotIsDetached(t *testing.T) {
	manager := NewJobManager()
	job := manager.CreateJob("j1", "/photos", false)
	job.Warnings = []string{"first"}

	snap := job.snapshot()
	job.Warnings = append(job.Warnings, "second")

	if len(snap.Warnings) != 1 {
		t.Errorf("snapshot warnings = %v, want the state at snapshot time", snap.Warnings)
	}
}

func TestEventBroadcaster(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()

	b.SendEvent(JobEvent{Type: "progress"})
	select {
	case ev := <-ch:
		if ev.Type != "progress" {
			t.Errorf("event type = %s", ev.Type)
		}
	default:
		t.Fatal("no event delivered")
	}

	b.RemoveListener(ch)
	if _, open := <-ch; open {
		t.Error("channel should be closed after removal")
	}
}
