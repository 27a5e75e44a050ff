package detect

import (
	"context"
	"sync"
)

// MockDetector is a deterministic in-memory detector for tests: it maps
// image paths to canned detections and records which paths were asked
// for.
type MockDetector struct {
	mu         sync.Mutex
	detections map[string][]Detection
	calls      []string

	// Error injection
	DetectError error
	// FailPaths makes Detect return DetectError only for these paths.
	FailPaths map[string]bool
}

// NewMockDetector creates an empty mock detector.
func NewMockDetector() *MockDetector {
	return &MockDetector{
		detections: make(map[string][]Detection),
		FailPaths:  make(map[string]bool),
	}
}

// AddImage registers the detections returned for an image path.
func (m *MockDetector) AddImage(path string, detections ...Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections[path] = detections
}

// Detect returns the canned detections for the path.
func (m *MockDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, imagePath)
	if m.DetectError != nil && (len(m.FailPaths) == 0 || m.FailPaths[imagePath]) {
		return nil, m.DetectError
	}
	return m.detections[imagePath], nil
}

// Calls returns the paths Detect was called with, in call order.
func (m *MockDetector) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
