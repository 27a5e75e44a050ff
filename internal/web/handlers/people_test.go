package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jvanek/facegroups/internal/registry"
)

func TestPeopleHandler_Match_NoRegistry(t *testing.T) {
	app, _ := newTestApp(t)
	handler := NewPeopleHandler(app)

	body, _ := json.Marshal(MatchRequest{Folder: "/photos"})
	req := httptest.NewRequest("POST", "/api/v1/people/match", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	handler.Match(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "person registry is not configured")
}

func TestPeopleHandler_Match(t *testing.T) {
	app, _ := newTestApp(t)
	seedFolder(t, app, "/photos")

	storage := registry.NewMemoryStorage()
	err := storage.AddPerson(context.Background(), &registry.Person{
		ID:         "bob",
		Name:       "Bob",
		Embeddings: [][]float32{{0, 1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	app.Registry, err = registry.NewIndexed(context.Background(), storage)
	if err != nil {
		t.Fatal(err)
	}

	handler := NewPeopleHandler(app)

	body, _ := json.Marshal(MatchRequest{Folder: "/photos"})
	req := httptest.NewRequest("POST", "/api/v1/people/match", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	handler.Match(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Matched []MatchedGroup `json:"matched"`
	}
	parseJSONResponse(t, recorder, &result)
	if len(result.Matched) != 1 {
		t.Fatalf("matched = %+v, want the unnamed group", result.Matched)
	}
	if result.Matched[0].GroupID != "g-unnamed" || result.Matched[0].Name != "Bob" {
		t.Errorf("match = %+v", result.Matched[0])
	}

	// The auto-assigned name is persisted.
	data, _ := app.Store.LoadAggregate("/photos")
	if g := data.GroupByID("g-unnamed"); g.Name != "Bob" {
		t.Errorf("persisted name = %q, want Bob", g.Name)
	}
}

func TestPeopleHandler_Match_MissingFolder(t *testing.T) {
	app, _ := newTestApp(t)
	storage := registry.NewMemoryStorage()
	idx, err := registry.NewIndexed(context.Background(), storage)
	if err != nil {
		t.Fatal(err)
	}
	app.Registry = idx
	handler := NewPeopleHandler(app)

	body, _ := json.Marshal(MatchRequest{})
	req := httptest.NewRequest("POST", "/api/v1/people/match", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	handler.Match(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "missing folder")
}
