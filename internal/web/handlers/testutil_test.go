package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/jvanek/facegroups/internal/config"
	"github.com/jvanek/facegroups/internal/detect"
	"github.com/jvanek/facegroups/internal/faces"
	"github.com/jvanek/facegroups/internal/store"
)

// newTestApp creates an App over a temp-dir store and a mock detector.
func newTestApp(t *testing.T) (*App, *detect.MockDetector) {
	t.Helper()

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	detector := detect.NewMockDetector()

	cfg := config.Load()
	return NewApp(cfg, st, detector, nil), detector
}

// seedFolder persists a small aggregate: a named pair, an unnamed pair and
// one ungrouped face.
func seedFolder(t *testing.T, app *App, folder string) *faces.FolderFaceData {
	t.Helper()

	data := faces.NewFolderData(folder, faces.ModePrimary)
	groupIDs := []string{"g-anna", "g-anna", "g-unnamed", "g-unnamed", ""}
	for i, emb := range [][]float32{{1, 0, 0}, {0.99, 0.1, 0}, {0, 1, 0}, {0.1, 0.99, 0}, {0, 0, 1}} {
		id := fmt.Sprintf("f%d", i+1)
		data.AddFaces(&faces.DetectedFace{
			ID:        id,
			ImagePath: fmt.Sprintf("%s/img%d.jpg", folder, i+1),
			Quality:   0.9,
			Embedding: emb,
			GroupID:   groupIDs[i],
		})
	}
	data.Groups = []*faces.FaceGroup{
		{ID: "g-anna", Name: "Anna", RepresentativeID: "f1", MemberIDs: []string{"f1", "f2"}},
		{ID: "g-unnamed", RepresentativeID: "f3", MemberIDs: []string{"f3", "f4"}},
	}
	data.ScanComplete = true
	if err := data.Validate(); err != nil {
		t.Fatalf("seed fixture invalid: %v", err)
	}
	if err := app.Store.SaveAggregate(data); err != nil {
		t.Fatalf("seeding aggregate: %v", err)
	}
	return data
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message.
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
