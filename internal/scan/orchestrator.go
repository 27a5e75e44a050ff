// Package scan drives the bounded-concurrency detection pipeline over a
// folder and folds results into the persisted aggregate.
package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jvanek/facegroups/internal/cluster"
	"github.com/jvanek/facegroups/internal/constants"
	"github.com/jvanek/facegroups/internal/detect"
	"github.com/jvanek/facegroups/internal/faces"
)

// Store is the persistence surface the orchestrator writes through.
type Store interface {
	LoadAggregate(folder string) (*faces.FolderFaceData, error)
	SaveAggregate(data *faces.FolderFaceData) error
	DeleteAggregate(folder string) error
	SaveThumbnail(data []byte, folder, faceID string) error
	DeleteThumbnail(folder, faceID string) error
}

// Progress describes one scan progress event.
type Progress struct {
	Phase     string // "diffing", "detecting", "matching", "done"
	Completed int
	Total     int
	ImagePath string
	Faces     int
	Groups    int
	Warning   string // non-fatal problem (e.g., checkpoint write failure)
}

// Orchestrator runs scans for one folder. A single coordinating goroutine
// owns the aggregate and performs every mutation; the worker pool only
// runs side-effect-free detection calls.
type Orchestrator struct {
	store    Store
	detector detect.Detector
	cfg      faces.RecognitionConfig

	Workers    int // defaults to constants.ScanWorkers
	Checkpoint int // completed units between saves, defaults to constants.CheckpointInterval

	// OnProgress, if set, receives progress events from the coordinator.
	OnProgress func(Progress)

	// AfterScan, if set, runs once a scan completes (known-person matching).
	AfterScan func(ctx context.Context, m *faces.Mutator) error

	running atomic.Bool
}

// New creates an orchestrator for the given store and detector.
func New(store Store, detector detect.Detector, cfg faces.RecognitionConfig) *Orchestrator {
	return &Orchestrator{
		store:      store,
		detector:   detector,
		cfg:        cfg,
		Workers:    constants.ScanWorkers,
		Checkpoint: constants.CheckpointInterval,
	}
}

// Running reports whether a scan is claimed or in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// TryStart atomically claims the orchestrator for one scan. The winner
// may install OnProgress and AfterScan before calling Run; nothing reads
// the callback fields while the claim is held but Run has not started.
// The claim is released when Run finishes.
func (o *Orchestrator) TryStart() bool {
	return o.running.CompareAndSwap(false, true)
}

func (o *Orchestrator) progress(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

// detectionUnit is one completed worker result.
type detectionUnit struct {
	path       string
	sig        faces.FileSignature
	detections []detect.Detection
}

// Scan claims the orchestrator and processes the folder's images
// incrementally. Starting a scan while one is already claimed or running
// for this orchestrator is rejected as a no-op and returns (nil, nil).
// There is no mid-scan cancellation; ctx only bounds the individual
// detection calls.
func (o *Orchestrator) Scan(ctx context.Context, folder string, imagePaths []string, force bool) (*faces.FolderFaceData, error) {
	if !o.TryStart() {
		return nil, nil
	}
	return o.Run(ctx, folder, imagePaths, force)
}

// Run executes a scan under a claim obtained with TryStart and releases
// the claim when done.
func (o *Orchestrator) Run(ctx context.Context, folder string, imagePaths []string, force bool) (*faces.FolderFaceData, error) {
	defer o.running.Store(false)

	data, err := o.prepare(folder, force)
	if err != nil {
		return nil, err
	}

	o.progress(Progress{Phase: "diffing", Total: len(imagePaths)})

	current := faces.CurrentSignatures(imagePaths)
	diff := faces.DiffFiles(current, data.ScannedFiles)

	for _, id := range data.PurgePaths(diff.ToRemove) {
		_ = o.store.DeleteThumbnail(folder, id)
	}

	if len(diff.ToScan) == 0 {
		return o.finish(ctx, data, 0)
	}

	results := o.runWorkers(ctx, diff.ToScan, current)

	completed := 0
	for unit := range results {
		o.mergeUnit(data, unit)
		completed++

		var warning string
		if completed%o.Checkpoint == 0 {
			if err := o.store.SaveAggregate(data); err != nil {
				warning = fmt.Sprintf("checkpoint save failed: %v", err)
			}
		}
		o.progress(Progress{
			Phase:     "detecting",
			Completed: completed,
			Total:     len(diff.ToScan),
			ImagePath: unit.path,
			Faces:     len(data.Faces),
			Groups:    len(data.Groups),
			Warning:   warning,
		})
	}

	return o.finish(ctx, data, completed)
}

// prepare loads or resets the folder aggregate.
func (o *Orchestrator) prepare(folder string, force bool) (*faces.FolderFaceData, error) {
	if force {
		if err := o.store.DeleteAggregate(folder); err != nil {
			return nil, fmt.Errorf("discarding folder data: %w", err)
		}
		return faces.NewFolderData(folder, o.cfg.Mode), nil
	}

	data, err := o.store.LoadAggregate(folder)
	if err != nil {
		return nil, fmt.Errorf("loading folder data: %w", err)
	}
	if data == nil {
		data = faces.NewFolderData(folder, o.cfg.Mode)
	}
	return data, nil
}

// runWorkers fans detection out over the pool and returns the fan-in
// channel, closed once every unit has completed.
func (o *Orchestrator) runWorkers(ctx context.Context, toScan []string, current map[string]faces.FileSignature) <-chan detectionUnit {
	results := make(chan detectionUnit)
	sem := make(chan struct{}, o.Workers)
	var wg sync.WaitGroup

	go func() {
		for _, path := range toScan {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				// Per-file detection failure means zero faces; the scan continues.
				detections, err := o.detector.Detect(ctx, p)
				if err != nil {
					detections = nil
				}
				results <- detectionUnit{path: p, sig: current[p], detections: detections}
			}(path)
		}
		wg.Wait()
		close(results)
	}()

	return results
}

// mergeUnit folds one completed image into the aggregate and immediately
// clusters the new faces against the groups accumulated so far.
func (o *Orchestrator) mergeUnit(data *faces.FolderFaceData, unit detectionUnit) {
	newFaces := make([]*faces.DetectedFace, 0, len(unit.detections))
	for _, d := range unit.detections {
		f := &faces.DetectedFace{
			ID:               uuid.NewString(),
			ImagePath:        unit.path,
			Quality:          d.Quality,
			Confidence:       d.Confidence,
			Embedding:        d.Embedding,
			ContextEmbedding: d.ContextEmbedding,
		}
		newFaces = append(newFaces, f)
		if len(d.Thumbnail) > 0 {
			// A failed thumbnail write costs a blank tile in the UI, nothing more.
			_ = o.store.SaveThumbnail(d.Thumbnail, data.Folder, f.ID)
		}
	}

	data.AddFaces(newFaces...)
	data.ScannedFiles[unit.path] = unit.sig
	data.Groups = cluster.Assign(newFaces, data, o.cfg)
}

// finish marks the aggregate scan-complete, persists it and runs the
// optional post-scan hook.
func (o *Orchestrator) finish(ctx context.Context, data *faces.FolderFaceData, completed int) (*faces.FolderFaceData, error) {
	data.ScanComplete = true
	data.Mode = o.cfg.Mode
	data.LastScan = time.Now()

	var warning string
	if err := o.store.SaveAggregate(data); err != nil {
		warning = fmt.Sprintf("final save failed: %v", err)
	}

	if o.AfterScan != nil {
		o.progress(Progress{Phase: "matching", Completed: completed, Faces: len(data.Faces), Groups: len(data.Groups)})
		if err := o.AfterScan(ctx, faces.NewMutator(data, mutationStore{o.store})); err != nil {
			warning = fmt.Sprintf("known-person matching failed: %v", err)
		}
	}

	o.progress(Progress{
		Phase:     "done",
		Completed: completed,
		Total:     completed,
		Faces:     len(data.Faces),
		Groups:    len(data.Groups),
		Warning:   warning,
	})
	return data, nil
}

// mutationStore narrows the orchestrator store to the mutation layer's
// persistence surface.
type mutationStore struct {
	s Store
}

func (ms mutationStore) SaveAggregate(data *faces.FolderFaceData) error {
	return ms.s.SaveAggregate(data)
}

func (ms mutationStore) DeleteThumbnail(folder, faceID string) error {
	return ms.s.DeleteThumbnail(folder, faceID)
}
