package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jvanek/facegroups/internal/faces"
	"github.com/jvanek/facegroups/internal/suggest"
)

type suggestionsResponse struct {
	Folder      string                    `json:"folder"`
	Threshold   float64                   `json:"threshold"`
	Suggestions []suggest.MergeSuggestion `json:"suggestions"`
}

func TestSuggestHandler_Merge(t *testing.T) {
	app, _ := newTestApp(t)
	handler := NewSuggestHandler(app)

	// Two groups whose representatives are nearly parallel, one orthogonal.
	data := faces.NewFolderData("/photos", faces.ModePrimary)
	for i, emb := range [][]float32{{1, 0, 0}, {0.99, 0.1, 0}, {0, 0, 1}} {
		id := fmt.Sprintf("f%d", i+1)
		groupID := fmt.Sprintf("g%d", i+1)
		data.AddFaces(&faces.DetectedFace{
			ID:        id,
			ImagePath: fmt.Sprintf("/photos/img%d.jpg", i+1),
			Quality:   0.9,
			Embedding: emb,
			GroupID:   groupID,
		})
		data.Groups = append(data.Groups, &faces.FaceGroup{
			ID:               groupID,
			RepresentativeID: id,
			MemberIDs:        []string{id},
		})
	}
	if err := app.Store.SaveAggregate(data); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/v1/suggestions?folder=/photos", nil)
	recorder := httptest.NewRecorder()

	handler.Merge(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result suggestionsResponse
	parseJSONResponse(t, recorder, &result)
	if len(result.Suggestions) != 1 {
		t.Fatalf("suggestions = %+v, want the near-parallel pair only", result.Suggestions)
	}
	s := result.Suggestions[0]
	if s.GroupA != "g1" || s.GroupB != "g2" {
		t.Errorf("suggested pair = %s/%s, want g1/g2", s.GroupA, s.GroupB)
	}
}

func TestSuggestHandler_Merge_OrthogonalGroups(t *testing.T) {
	app, _ := newTestApp(t)
	seedFolder(t, app, "/photos")
	handler := NewSuggestHandler(app)

	req := httptest.NewRequest("GET", "/api/v1/suggestions?folder=/photos", nil)
	recorder := httptest.NewRecorder()

	handler.Merge(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result suggestionsResponse
	parseJSONResponse(t, recorder, &result)
	if len(result.Suggestions) != 0 {
		t.Errorf("orthogonal groups should not be suggested: %+v", result.Suggestions)
	}
}

func TestSuggestHandler_Refine(t *testing.T) {
	app, _ := newTestApp(t)
	handler := NewSuggestHandler(app)

	// A named group and a similar unnamed one.
	data := faces.NewFolderData("/photos", faces.ModePrimary)
	embs := [][]float32{{1, 0, 0}, {0.95, 0.2, 0}}
	names := []string{"Anna", ""}
	for i, emb := range embs {
		id := fmt.Sprintf("f%d", i+1)
		groupID := fmt.Sprintf("g%d", i+1)
		data.AddFaces(&faces.DetectedFace{
			ID:        id,
			ImagePath: fmt.Sprintf("/photos/img%d.jpg", i+1),
			Quality:   0.9,
			Embedding: emb,
			GroupID:   groupID,
		})
		data.Groups = append(data.Groups, &faces.FaceGroup{
			ID:               groupID,
			Name:             names[i],
			RepresentativeID: id,
			MemberIDs:        []string{id},
		})
	}
	if err := app.Store.SaveAggregate(data); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/v1/suggestions/refine?folder=/photos", nil)
	recorder := httptest.NewRecorder()

	handler.Refine(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result suggestionsResponse
	parseJSONResponse(t, recorder, &result)
	if len(result.Suggestions) == 0 {
		t.Error("expected the unnamed group to be suggested against the named one")
	}
}

func TestThresholdParam(t *testing.T) {
	tests := []struct {
		query    string
		expected float64
	}{
		{"", 0.55},
		{"?threshold=0.8", 0.8},
		{"?threshold=1.5", 0.55},
		{"?threshold=-0.1", 0.55},
		{"?threshold=abc", 0.55},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/api/v1/suggestions"+tt.query, nil)
		got := thresholdParam(req, 0.55)
		if got != tt.expected {
			t.Errorf("thresholdParam(%q) = %f, want %f", tt.query, got, tt.expected)
		}
	}
}
