package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jvanek/facegroups/internal/registry"
)

// PeopleHandler handles known-person matching endpoints.
type PeopleHandler struct {
	app *App
}

// NewPeopleHandler creates a new people handler.
func NewPeopleHandler(app *App) *PeopleHandler {
	return &PeopleHandler{app: app}
}

// MatchRequest represents a request to match a folder against the
// known-person registry.
type MatchRequest struct {
	Folder string `json:"folder"`
}

// MatchedGroup represents one auto-named group in the match response.
type MatchedGroup struct {
	GroupID    string  `json:"group_id"`
	PersonID   string  `json:"person_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Match names unnamed groups after known people from the registry,
// merging groups that resolve to the same person.
func (h *PeopleHandler) Match(w http.ResponseWriter, r *http.Request) {
	if h.app.Registry == nil {
		respondError(w, http.StatusBadRequest, "person registry is not configured")
		return
	}

	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" {
		respondError(w, http.StatusBadRequest, "missing folder")
		return
	}

	h.app.mu.Lock()
	defer h.app.mu.Unlock()

	data, err := h.app.loadData(req.Folder)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "loading face data: "+err.Error())
		return
	}

	matcher := registry.NewMatcher(h.app.Registry, h.app.Config.Registry.MatchConfidence)
	if err := matcher.MatchFolder(r.Context(), h.app.mutator(data)); err != nil {
		respondError(w, http.StatusInternalServerError, "matching people: "+err.Error())
		return
	}

	matched := make([]MatchedGroup, 0, len(data.Matches))
	for groupID, match := range data.Matches {
		g := data.GroupByID(groupID)
		if g == nil {
			continue
		}
		matched = append(matched, MatchedGroup{
			GroupID:    groupID,
			PersonID:   match.PersonID,
			Name:       g.Name,
			Confidence: match.Confidence,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"folder":  req.Folder,
		"matched": matched,
	})
}
