package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/jvanek/facegroups/internal/config"
	"github.com/jvanek/facegroups/internal/detect"
	"github.com/jvanek/facegroups/internal/faces"
	"github.com/jvanek/facegroups/internal/meta"
	"github.com/jvanek/facegroups/internal/registry"
	"github.com/jvanek/facegroups/internal/scan"
	"github.com/jvanek/facegroups/internal/store"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// App bundles the shared state handlers operate on. Mutations go through
// a single mutex so only one handler rewrites an aggregate at a time.
type App struct {
	Config   *config.Config
	Store    *store.Store
	Detector detect.Detector
	Registry registry.Registry

	jobs     *JobManager
	metadata faces.MetadataWriter

	mu            sync.Mutex // serializes aggregate mutations
	orchestrators map[string]*scan.Orchestrator
	omu           sync.Mutex
}

// NewApp creates the shared handler state.
func NewApp(cfg *config.Config, st *store.Store, detector detect.Detector, reg registry.Registry) *App {
	app := &App{
		Config:        cfg,
		Store:         st,
		Detector:      detector,
		Registry:      reg,
		jobs:          NewJobManager(),
		orchestrators: make(map[string]*scan.Orchestrator),
	}
	if tool := meta.NewExifTool(""); tool.Available() {
		app.metadata = tool
	}
	return app
}

// orchestrator returns the per-folder orchestrator, creating it on first
// use. Reusing the instance lets its re-entrancy guard reject a second
// scan of the same folder while one is running.
func (a *App) orchestrator(folder string) *scan.Orchestrator {
	a.omu.Lock()
	defer a.omu.Unlock()
	if o, ok := a.orchestrators[folder]; ok {
		return o
	}
	o := scan.New(a.Store, a.Detector, a.Config.RecognitionConfig())
	a.orchestrators[folder] = o
	return o
}

// loadData loads the aggregate for a folder, or an empty one when the
// folder has never been scanned.
func (a *App) loadData(folder string) (*faces.FolderFaceData, error) {
	data, err := a.Store.LoadAggregate(folder)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = faces.NewFolderData(folder, a.Config.RecognitionConfig().Mode)
	}
	return data, nil
}

// mutator wraps the aggregate with the full persistence surface.
func (a *App) mutator(data *faces.FolderFaceData) *faces.Mutator {
	m := faces.NewMutator(data, a.Store)
	m.Trasher = a.Store.Trasher()
	m.Metadata = a.metadata
	return m
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// folderParam extracts and validates the folder query parameter.
func folderParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		respondError(w, http.StatusBadRequest, "missing folder parameter")
		return "", false
	}
	return folder, true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
