package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jvanek/facegroups/internal/detect"
	"github.com/jvanek/facegroups/internal/faces"
	"github.com/jvanek/facegroups/internal/store"
)

func testCfg() faces.RecognitionConfig {
	return faces.RecognitionConfig{
		Mode:             faces.ModePrimary,
		ClusterThreshold: 0.62,
		QualityGate:      0.30,
	}
}

func writeImage(t *testing.T, folder, name, content string) string {
	t.Helper()
	path := filepath.Join(folder, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func detection(quality float64, embedding ...float32) detect.Detection {
	return detect.Detection{Quality: quality, Confidence: 0.99, Embedding: embedding}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store, *detect.MockDetector) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	detector := detect.NewMockDetector()
	return New(st, detector, testCfg()), st, detector
}

func TestScanFreshFolder(t *testing.T) {
	orch, st, detector := newTestOrchestrator(t)
	folder := t.TempDir()

	img1 := writeImage(t, folder, "one.jpg", "1")
	img2 := writeImage(t, folder, "two.jpg", "2")
	img3 := writeImage(t, folder, "three.jpg", "3")
	detector.AddImage(img1, detection(0.9, 1, 0), detection(0.9, 0.99, 0.14))
	detector.AddImage(img2, detection(0.9, 0.98, 0.19))
	// img3 has no faces.

	var phases []string
	orch.OnProgress = func(p Progress) { phases = append(phases, p.Phase) }

	data, err := orch.Scan(context.Background(), folder, []string{img1, img2, img3}, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if !data.ScanComplete {
		t.Error("ScanComplete = false")
	}
	if data.Mode != faces.ModePrimary {
		t.Errorf("Mode = %s", data.Mode)
	}
	if data.LastScan.IsZero() {
		t.Error("LastScan not set")
	}
	if len(data.Faces) != 3 {
		t.Errorf("faces = %d, want 3", len(data.Faces))
	}
	if len(data.Groups) != 1 {
		t.Errorf("groups = %d, want 1 (same person everywhere)", len(data.Groups))
	}
	if len(data.ScannedFiles) != 3 {
		t.Errorf("scanned files = %d, want 3 (faceless images included)", len(data.ScannedFiles))
	}
	if err := data.Validate(); err != nil {
		t.Errorf("Validate(): %v", err)
	}

	if phases[0] != "diffing" || phases[len(phases)-1] != "done" {
		t.Errorf("phases = %v", phases)
	}

	// The result is persisted.
	loaded, err := st.LoadAggregate(folder)
	if err != nil || loaded == nil {
		t.Fatalf("LoadAggregate after scan = (%v, %v)", loaded, err)
	}
	if len(loaded.Faces) != 3 || !loaded.ScanComplete {
		t.Errorf("persisted aggregate = %d faces, complete=%v", len(loaded.Faces), loaded.ScanComplete)
	}
}

func TestScanIsIncremental(t *testing.T) {
	orch, _, detector := newTestOrchestrator(t)
	folder := t.TempDir()

	img1 := writeImage(t, folder, "one.jpg", "1")
	detector.AddImage(img1, detection(0.9, 1, 0))

	if _, err := orch.Scan(context.Background(), folder, []string{img1}, false); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	callsAfterFirst := len(detector.Calls())

	data, err := orch.Scan(context.Background(), folder, []string{img1}, false)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(detector.Calls()) != callsAfterFirst {
		t.Error("unchanged file was re-detected")
	}
	if len(data.Faces) != 1 || !data.ScanComplete {
		t.Errorf("second scan result: %d faces, complete=%v", len(data.Faces), data.ScanComplete)
	}
}

func TestScanPicksUpNewAndRemovedFiles(t *testing.T) {
	orch, _, detector := newTestOrchestrator(t)
	folder := t.TempDir()

	img1 := writeImage(t, folder, "one.jpg", "1")
	img2 := writeImage(t, folder, "two.jpg", "2")
	detector.AddImage(img1, detection(0.9, 1, 0, 0))
	detector.AddImage(img2, detection(0.9, 0, 1, 0))

	if _, err := orch.Scan(context.Background(), folder, []string{img1, img2}, false); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	// img2 disappears, img3 appears.
	if err := os.Remove(img2); err != nil {
		t.Fatal(err)
	}
	img3 := writeImage(t, folder, "three.jpg", "3")
	detector.AddImage(img3, detection(0.9, 0, 0, 1))

	data, err := orch.Scan(context.Background(), folder, []string{img1, img3}, false)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}

	if len(data.FacesForPath(img2)) != 0 {
		t.Error("faces of the removed image should be purged")
	}
	if len(data.FacesForPath(img3)) != 1 {
		t.Error("new image was not scanned")
	}
	if _, ok := data.ScannedFiles[img2]; ok {
		t.Error("removed image still in the scanned-file map")
	}
	if err := data.Validate(); err != nil {
		t.Errorf("Validate(): %v", err)
	}
}

func TestScanRescansModifiedFile(t *testing.T) {
	orch, _, detector := newTestOrchestrator(t)
	folder := t.TempDir()

	img := writeImage(t, folder, "one.jpg", "v1")
	detector.AddImage(img, detection(0.9, 1, 0))

	first, err := orch.Scan(context.Background(), folder, []string{img}, false)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	oldFaceID := first.FacesForPath(img)[0].ID

	// Modify the file; content length differs so the signature changes.
	writeImage(t, folder, "one.jpg", "v2 longer")
	detector.AddImage(img, detection(0.8, 1, 0))

	data, err := orch.Scan(context.Background(), folder, []string{img}, false)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}

	got := data.FacesForPath(img)
	if len(got) != 1 {
		t.Fatalf("faces for modified image = %d, want 1", len(got))
	}
	if got[0].ID == oldFaceID {
		t.Error("modified image should get fresh faces")
	}
	if err := data.Validate(); err != nil {
		t.Errorf("Validate(): %v", err)
	}
}

func TestScanForceDiscardsEverything(t *testing.T) {
	orch, _, detector := newTestOrchestrator(t)
	folder := t.TempDir()

	img := writeImage(t, folder, "one.jpg", "1")
	detector.AddImage(img, detection(0.9, 1, 0))

	first, err := orch.Scan(context.Background(), folder, []string{img}, false)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	first.Groups[0].Name = "Anna"
	oldGroupID := first.Groups[0].ID

	data, err := orch.Scan(context.Background(), folder, []string{img}, true)
	if err != nil {
		t.Fatalf("force scan: %v", err)
	}
	if len(data.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(data.Groups))
	}
	if data.Groups[0].ID == oldGroupID || data.Groups[0].Name != "" {
		t.Error("force scan should start from scratch, not keep old identities")
	}
}

func TestScanEmptyFolder(t *testing.T) {
	orch, st, _ := newTestOrchestrator(t)
	folder := t.TempDir()

	data, err := orch.Scan(context.Background(), folder, nil, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !data.ScanComplete || len(data.Faces) != 0 {
		t.Errorf("empty scan = %d faces, complete=%v", len(data.Faces), data.ScanComplete)
	}
	if loaded, _ := st.LoadAggregate(folder); loaded == nil {
		t.Error("even an empty result should be persisted")
	}
}

func TestScanDetectionFailureIsNotFatal(t *testing.T) {
	orch, _, detector := newTestOrchestrator(t)
	folder := t.TempDir()

	good := writeImage(t, folder, "good.jpg", "1")
	bad := writeImage(t, folder, "bad.jpg", "2")
	detector.AddImage(good, detection(0.9, 1, 0))
	detector.DetectError = os.ErrDeadlineExceeded
	detector.FailPaths[bad] = true

	data, err := orch.Scan(context.Background(), folder, []string{good, bad}, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(data.FacesForPath(good)) != 1 {
		t.Error("healthy image should still be processed")
	}
	if len(data.FacesForPath(bad)) != 0 {
		t.Error("failed image should contribute no faces")
	}
	if _, ok := data.ScannedFiles[bad]; !ok {
		t.Error("failed image should still be marked scanned")
	}
}

// gatedDetector blocks inside Detect until released, to hold a scan open.
type gatedDetector struct {
	release chan struct{}
}

func (d *gatedDetector) Detect(ctx context.Context, imagePath string) ([]detect.Detection, error) {
	<-d.release
	return nil, nil
}

func TestScanRejectsReentry(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	gate := &gatedDetector{release: make(chan struct{})}
	orch := New(st, gate, testCfg())
	folder := t.TempDir()
	img := writeImage(t, folder, "one.jpg", "1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := orch.Scan(context.Background(), folder, []string{img}, false); err != nil {
			t.Errorf("blocked scan failed: %v", err)
		}
	}()

	// Wait for the first scan to take the guard.
	for !orch.Running() {
		time.Sleep(time.Millisecond)
	}

	data, err := orch.Scan(context.Background(), folder, []string{img}, false)
	if data != nil || err != nil {
		t.Errorf("concurrent scan = (%v, %v), want (nil, nil) no-op", data, err)
	}

	close(gate.release)
	<-done

	if orch.Running() {
		t.Error("Running() should be false after completion")
	}
}

func TestTryStartClaimsBeforeRun(t *testing.T) {
	orch, _, detector := newTestOrchestrator(t)
	folder := t.TempDir()
	img := writeImage(t, folder, "one.jpg", "1")
	detector.AddImage(img, detection(0.9, 1, 0))

	if !orch.TryStart() {
		t.Fatal("claiming an idle orchestrator failed")
	}
	if orch.TryStart() {
		t.Error("double claim succeeded")
	}
	if !orch.Running() {
		t.Error("Running() = false while claimed")
	}

	// Other callers back off while the claim is held but before Run.
	if data, err := orch.Scan(context.Background(), folder, []string{img}, false); data != nil || err != nil {
		t.Errorf("Scan during claim = (%v, %v), want (nil, nil)", data, err)
	}

	// Callbacks installed under the claim are seen by the run.
	var phases []string
	orch.OnProgress = func(p Progress) { phases = append(phases, p.Phase) }

	data, err := orch.Run(context.Background(), folder, []string{img}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if data == nil || len(data.Faces) != 1 {
		t.Fatalf("Run result = %+v", data)
	}
	if len(phases) == 0 || phases[len(phases)-1] != "done" {
		t.Errorf("phases = %v", phases)
	}
	if orch.Running() {
		t.Error("claim not released after Run")
	}
	if !orch.TryStart() {
		t.Error("orchestrator not claimable again after Run")
	}
}

func TestScanCheckpoints(t *testing.T) {
	orch, st, detector := newTestOrchestrator(t)
	orch.Checkpoint = 1
	orch.Workers = 1
	folder := t.TempDir()

	var paths []string
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		p := writeImage(t, folder, name, name)
		detector.AddImage(p, detection(0.9, 1, 0))
		paths = append(paths, p)
	}

	checkpoints := 0
	orch.OnProgress = func(p Progress) {
		if p.Phase == "detecting" {
			// With Checkpoint=1 every completed unit is persisted before
			// its progress event fires.
			loaded, err := st.LoadAggregate(folder)
			if err != nil || loaded == nil {
				t.Errorf("no checkpoint on disk at unit %d: %v", p.Completed, err)
				return
			}
			if len(loaded.ScannedFiles) != p.Completed {
				t.Errorf("checkpoint has %d scanned files, want %d", len(loaded.ScannedFiles), p.Completed)
			}
			checkpoints++
		}
	}

	if _, err := orch.Scan(context.Background(), folder, paths, false); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if checkpoints != 3 {
		t.Errorf("checkpoint events = %d, want 3", checkpoints)
	}
}

func TestScanRunsAfterScanHook(t *testing.T) {
	orch, _, detector := newTestOrchestrator(t)
	folder := t.TempDir()
	img := writeImage(t, folder, "one.jpg", "1")
	detector.AddImage(img, detection(0.9, 1, 0))

	hookCalled := false
	orch.AfterScan = func(ctx context.Context, m *faces.Mutator) error {
		hookCalled = true
		if len(m.Data.Groups) != 1 {
			t.Errorf("hook sees %d groups, want 1", len(m.Data.Groups))
		}
		return nil
	}

	var sawMatching bool
	orch.OnProgress = func(p Progress) {
		if p.Phase == "matching" {
			sawMatching = true
		}
	}

	if _, err := orch.Scan(context.Background(), folder, []string{img}, false); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !hookCalled {
		t.Error("AfterScan hook not called")
	}
	if !sawMatching {
		t.Error("matching phase not reported")
	}
}

func TestListImages(t *testing.T) {
	folder := t.TempDir()
	writeImage(t, folder, "a.JPG", "1")
	writeImage(t, folder, "b.png", "2")
	writeImage(t, folder, "notes.txt", "3")
	writeImage(t, folder, "c.webp", "4")
	if err := os.Mkdir(filepath.Join(folder, "sub.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths, err := ListImages(folder)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("paths = %v, want the 3 image files", paths)
	}
	for _, p := range paths {
		if filepath.Ext(p) == ".txt" {
			t.Errorf("non-image file listed: %s", p)
		}
	}
}
