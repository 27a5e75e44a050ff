package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jvanek/facegroups/internal/faces"
	"github.com/jvanek/facegroups/internal/registry"
	"github.com/jvanek/facegroups/internal/scan"
)

// ScanHandler handles folder scanning endpoints.
type ScanHandler struct {
	app *App
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(app *App) *ScanHandler {
	return &ScanHandler{app: app}
}

// FolderInfoResponse describes the scan state of a folder.
type FolderInfoResponse struct {
	Folder       string `json:"folder"`
	Scanned      bool   `json:"scanned"`
	ScanComplete bool   `json:"scan_complete"`
	Mode         string `json:"mode,omitempty"`
	LastScan     string `json:"last_scan,omitempty"`
	Faces        int    `json:"faces"`
	Groups       int    `json:"groups"`
	Images       int    `json:"images"`
	NewFiles     int    `json:"new_files"`
	RemovedFiles int    `json:"removed_files"`
	NeedsRescan  bool   `json:"needs_rescan"`
}

// FolderInfo reports whether a folder has been scanned and whether its
// stored results are stale.
func (h *ScanHandler) FolderInfo(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}

	images, err := scan.ListImages(folder)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("listing folder: %v", err))
		return
	}

	data, err := h.app.Store.LoadAggregate(folder)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("loading face data: %v", err))
		return
	}

	resp := FolderInfoResponse{
		Folder:      folder,
		Images:      len(images),
		NewFiles:    len(images),
		NeedsRescan: true,
	}
	if data == nil {
		respondJSON(w, http.StatusOK, resp)
		return
	}

	diff := faces.DiffFiles(faces.CurrentSignatures(images), data.ScannedFiles)
	resp.Scanned = true
	resp.ScanComplete = data.ScanComplete
	resp.Mode = string(data.Mode)
	if !data.LastScan.IsZero() {
		resp.LastScan = data.LastScan.Format("2006-01-02T15:04:05Z07:00")
	}
	resp.Faces = len(data.Faces)
	resp.Groups = len(data.Groups)
	resp.NewFiles = len(diff.ToScan)
	resp.RemovedFiles = len(diff.ToRemove)
	resp.NeedsRescan = data.NeedsRescan(h.app.Config.RecognitionConfig().Mode) ||
		len(diff.ToScan) > 0 || len(diff.ToRemove) > 0

	respondJSON(w, http.StatusOK, resp)
}

// ScanStartRequest represents a request to start a folder scan.
type ScanStartRequest struct {
	Folder string `json:"folder"`
	Force  bool   `json:"force"`
}

// Start starts a new scan job for a folder.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req ScanStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" {
		respondError(w, http.StatusBadRequest, "missing folder")
		return
	}

	info, err := os.Stat(req.Folder)
	if err != nil || !info.IsDir() {
		respondError(w, http.StatusBadRequest, "folder does not exist")
		return
	}

	images, err := scan.ListImages(req.Folder)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("listing folder: %v", err))
		return
	}

	// Claim the run before the job goroutine installs callbacks; losers
	// never touch the orchestrator.
	orch := h.app.orchestrator(req.Folder)
	if !orch.TryStart() {
		respondError(w, http.StatusConflict, "a scan is already running for this folder")
		return
	}

	jobID := uuid.New().String()
	job := h.app.jobs.CreateJob(jobID, req.Folder, req.Force)
	job.TotalImages = len(images)

	go h.runScanJob(job, orch, images)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(JobStatusPending),
	})
}

// runScanJob executes a claimed scan in the background, forwarding
// orchestrator progress to job listeners. The caller holds the TryStart
// claim, so installing the callbacks here is race-free.
func (h *ScanHandler) runScanJob(job *ScanJob, orch *scan.Orchestrator, images []string) {
	job.setStatus(JobStatusRunning)
	job.SendEvent(JobEvent{Type: "started", Message: "Scan started"})

	orch.OnProgress = func(p scan.Progress) {
		job.mu.Lock()
		if p.Total > 0 {
			job.TotalImages = p.Total
		}
		job.ProcessedImages = p.Completed
		job.Faces = p.Faces
		job.Groups = p.Groups
		if p.Warning != "" {
			job.Warnings = append(job.Warnings, p.Warning)
		}
		job.mu.Unlock()

		job.SendEvent(JobEvent{Type: "progress", Data: map[string]any{
			"phase":     p.Phase,
			"completed": p.Completed,
			"total":     p.Total,
			"image":     p.ImagePath,
			"faces":     p.Faces,
			"groups":    p.Groups,
			"warning":   p.Warning,
		}})
	}
	if h.app.Registry != nil && h.app.Config.Recognition.AutoMatchPeople {
		matcher := registry.NewMatcher(h.app.Registry, h.app.Config.Registry.MatchConfidence)
		orch.AfterScan = func(ctx context.Context, m *faces.Mutator) error {
			m.Trasher = h.app.Store.Trasher()
			return matcher.MatchFolder(ctx, m)
		}
	}

	data, err := orch.Run(context.Background(), job.Folder, images, job.Force)
	if err != nil {
		job.mu.Lock()
		job.Error = err.Error()
		job.mu.Unlock()
		job.setStatus(JobStatusFailed)
		job.SendEvent(JobEvent{Type: "failed", Message: err.Error()})
		log.Printf("scan failed for %s: %v", sanitizeForLog(job.Folder), err)
		return
	}

	job.mu.Lock()
	job.Faces = len(data.Faces)
	job.Groups = len(data.Groups)
	job.ProcessedImages = job.TotalImages
	job.mu.Unlock()
	job.setStatus(JobStatusCompleted)
	job.SendEvent(JobEvent{Type: "completed", Data: map[string]int{
		"faces":  len(data.Faces),
		"groups": len(data.Groups),
	}})
}

// Status returns the current state of a scan job.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, job.snapshot())
}

// Events streams scan job events via SSE.
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if job := h.app.jobs.GetJob(id); job != nil {
				return job
			}
			return nil
		},
		func(job SSEJob) any {
			return job.(*ScanJob).snapshot()
		},
	)
}

func (h *ScanHandler) lookup(w http.ResponseWriter, r *http.Request) (*ScanJob, bool) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil, false
	}
	job := h.app.jobs.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}
