package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jvanek/facegroups/internal/faces"
)

// GroupsHandler handles face group listing and mutation endpoints.
type GroupsHandler struct {
	app *App
}

// NewGroupsHandler creates a new groups handler.
func NewGroupsHandler(app *App) *GroupsHandler {
	return &GroupsHandler{app: app}
}

// GroupResponse represents one face group in API responses.
type GroupResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	Named            bool     `json:"named"`
	RepresentativeID string   `json:"representative_id"`
	Size             int      `json:"size"`
	FaceIDs          []string `json:"face_ids"`
	MatchedPersonID  string   `json:"matched_person_id,omitempty"`
	MatchConfidence  float64  `json:"match_confidence,omitempty"`
}

func groupResponse(data *faces.FolderFaceData, g *faces.FaceGroup) GroupResponse {
	resp := GroupResponse{
		ID:               g.ID,
		Name:             g.Name,
		Named:            g.Named(),
		RepresentativeID: g.RepresentativeID,
		Size:             g.Size(),
		FaceIDs:          append([]string(nil), g.MemberIDs...),
	}
	if match, ok := data.Matches[g.ID]; ok {
		resp.MatchedPersonID = match.PersonID
		resp.MatchConfidence = match.Confidence
	}
	return resp
}

// List returns all groups of a folder in display order: named groups
// first in natural name order, then unnamed groups by descending size.
func (h *GroupsHandler) List(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}

	data, err := h.app.loadData(folder)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("loading face data: %v", err))
		return
	}

	ordered := faces.DisplayOrder(data.Groups)
	groups := make([]GroupResponse, 0, len(ordered))
	for _, g := range ordered {
		groups = append(groups, groupResponse(data, g))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"folder":    folder,
		"groups":    groups,
		"ungrouped": len(data.UngroupedFaces()),
	})
}

// mutationResult is the common response shape for group mutations.
// Persistence failures do not roll back the in-memory change; they are
// reported as a warning instead of an error status.
type mutationResult struct {
	Changed bool   `json:"changed"`
	Warning string `json:"warning,omitempty"`
}

func result(changed bool, err error) mutationResult {
	res := mutationResult{Changed: changed}
	if err != nil {
		res.Warning = err.Error()
	}
	return res
}

// withMutator loads the folder aggregate and runs fn with a mutator over
// it, holding the app mutation lock for the duration.
func (h *GroupsHandler) withMutator(w http.ResponseWriter, folder string, fn func(m *faces.Mutator)) {
	h.app.mu.Lock()
	defer h.app.mu.Unlock()

	data, err := h.app.loadData(folder)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("loading face data: %v", err))
		return
	}
	fn(h.app.mutator(data))
}

// CreateGroupRequest represents a request to create a group from faces.
type CreateGroupRequest struct {
	Folder  string   `json:"folder"`
	FaceIDs []string `json:"face_ids"`
}

// Create forms a new group from the given faces.
func (h *GroupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" || len(req.FaceIDs) == 0 {
		respondError(w, http.StatusBadRequest, "missing folder or face_ids")
		return
	}

	h.withMutator(w, req.Folder, func(m *faces.Mutator) {
		g, err := m.CreateGroup(req.FaceIDs)
		if g == nil {
			respondJSON(w, http.StatusOK, result(false, err))
			return
		}
		resp := map[string]any{"group": groupResponse(m.Data, g)}
		if err != nil {
			resp["warning"] = err.Error()
		}
		respondJSON(w, http.StatusCreated, resp)
	})
}

// MergeRequest represents a request to merge groups.
type MergeRequest struct {
	Folder string   `json:"folder"`
	IDs    []string `json:"ids"`
}

// Merge merges the given groups into the one ranked first in display
// order. The target keeps its identity and name.
func (h *GroupsHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" {
		respondError(w, http.StatusBadRequest, "missing folder")
		return
	}

	h.withMutator(w, req.Folder, func(m *faces.Mutator) {
		targetID, changed, err := m.MergeMultiple(req.IDs)
		res := result(changed, err)
		respondJSON(w, http.StatusOK, map[string]any{
			"target_id": targetID,
			"changed":   res.Changed,
			"warning":   res.Warning,
		})
	})
}

// Ungroup dissolves the given groups, leaving the first member of each in
// place and splitting the rest into single-member groups.
func (h *GroupsHandler) Ungroup(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" {
		respondError(w, http.StatusBadRequest, "missing folder")
		return
	}

	h.withMutator(w, req.Folder, func(m *faces.Mutator) {
		changed, err := m.UngroupMultiple(req.IDs)
		respondJSON(w, http.StatusOK, result(changed, err))
	})
}

// NameRequest represents a request to name a group.
type NameRequest struct {
	Folder string `json:"folder"`
	Name   string `json:"name"`
}

// Name assigns a person name to a group and tags the member photos.
func (h *GroupsHandler) Name(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")

	var req NameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" {
		respondError(w, http.StatusBadRequest, "missing folder")
		return
	}

	h.withMutator(w, req.Folder, func(m *faces.Mutator) {
		changed, err := m.NameGroup(groupID, req.Name)
		respondJSON(w, http.StatusOK, result(changed, err))
	})
}

// Delete removes a group and its faces. With ?photos=true the member
// photo files are moved to the trash as well.
func (h *GroupsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}
	includePhotos := r.URL.Query().Get("photos") == "true"

	h.withMutator(w, folder, func(m *faces.Mutator) {
		trashed, err := m.DeleteGroup(groupID, includePhotos)
		resp := map[string]any{"trashed": trashed}
		if err != nil {
			resp["warning"] = err.Error()
		}
		respondJSON(w, http.StatusOK, resp)
	})
}

// MoveFacesRequest represents a request to move faces between groups.
type MoveFacesRequest struct {
	Folder        string   `json:"folder"`
	FaceIDs       []string `json:"face_ids"`
	TargetGroupID string   `json:"target_group_id"`
}

// MoveFaces moves the given faces into the target group.
func (h *GroupsHandler) MoveFaces(w http.ResponseWriter, r *http.Request) {
	var req MoveFacesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" || req.TargetGroupID == "" {
		respondError(w, http.StatusBadRequest, "missing folder or target_group_id")
		return
	}

	h.withMutator(w, req.Folder, func(m *faces.Mutator) {
		changed, err := m.MoveFaces(req.FaceIDs, req.TargetGroupID)
		respondJSON(w, http.StatusOK, result(changed, err))
	})
}

// UngroupFaceRequest represents a request to split one face out of its group.
type UngroupFaceRequest struct {
	Folder string `json:"folder"`
	FaceID string `json:"face_id"`
}

// UngroupFace splits a single face out of its group into a new
// single-member group.
func (h *GroupsHandler) UngroupFace(w http.ResponseWriter, r *http.Request) {
	var req UngroupFaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" || req.FaceID == "" {
		respondError(w, http.StatusBadRequest, "missing folder or face_id")
		return
	}

	h.withMutator(w, req.Folder, func(m *faces.Mutator) {
		changed, err := m.UngroupFace(req.FaceID)
		respondJSON(w, http.StatusOK, result(changed, err))
	})
}

// DeleteFacesRequest represents a request to delete faces.
type DeleteFacesRequest struct {
	Folder  string   `json:"folder"`
	FaceIDs []string `json:"face_ids"`
}

// DeleteFaces removes the given faces from the aggregate.
func (h *GroupsHandler) DeleteFaces(w http.ResponseWriter, r *http.Request) {
	var req DeleteFacesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" {
		respondError(w, http.StatusBadRequest, "missing folder")
		return
	}

	h.withMutator(w, req.Folder, func(m *faces.Mutator) {
		changed, err := m.DeleteFaces(req.FaceIDs)
		respondJSON(w, http.StatusOK, result(changed, err))
	})
}

// Thumbnail serves the stored thumbnail of a face.
func (h *GroupsHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	faceID := chi.URLParam(r, "id")
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}

	thumb, err := h.app.Store.LoadThumbnail(folder, faceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("loading thumbnail: %v", err))
		return
	}
	if thumb == nil {
		respondError(w, http.StatusNotFound, "thumbnail not found")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(thumb)
}
