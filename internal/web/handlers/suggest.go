package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jvanek/facegroups/internal/constants"
	"github.com/jvanek/facegroups/internal/suggest"
)

// SuggestHandler handles group merge suggestion endpoints.
type SuggestHandler struct {
	app *App
}

// NewSuggestHandler creates a new suggestions handler.
func NewSuggestHandler(app *App) *SuggestHandler {
	return &SuggestHandler{app: app}
}

func thresholdParam(r *http.Request, fallback float64) float64 {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > 1 {
		return fallback
	}
	return v
}

// Merge returns candidate group pairs whose representatives are similar
// enough to be the same person.
func (h *SuggestHandler) Merge(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}
	threshold := thresholdParam(r, constants.DefaultMergeSuggestionThreshold)

	data, err := h.app.loadData(folder)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("loading face data: %v", err))
		return
	}

	suggestions := suggest.ComputeMergeSuggestions(data, h.app.Config.RecognitionConfig(), threshold)
	respondJSON(w, http.StatusOK, map[string]any{
		"folder":      folder,
		"threshold":   threshold,
		"suggestions": suggestions,
	})
}

// Refine returns named-to-unnamed suggestions: unnamed groups that look
// like an already named person, at a lower threshold than Merge.
func (h *SuggestHandler) Refine(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}
	threshold := thresholdParam(r, constants.DefaultRefinementThreshold)

	data, err := h.app.loadData(folder)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("loading face data: %v", err))
		return
	}

	cfg := h.app.Config.RecognitionConfig()
	base := suggest.ComputeMergeSuggestions(data, cfg, constants.DefaultMergeSuggestionThreshold)
	suggestions := suggest.ComputeRefinementSuggestions(data, cfg, threshold, base)
	respondJSON(w, http.StatusOK, map[string]any{
		"folder":      folder,
		"threshold":   threshold,
		"suggestions": suggestions,
	})
}
