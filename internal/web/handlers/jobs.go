package handlers

import (
	"sync"
	"time"

	"github.com/jvanek/facegroups/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ScanJob represents an async folder scan job.
type ScanJob struct {
	EventBroadcaster

	ID              string     `json:"id"`
	Folder          string     `json:"folder"`
	Status          JobStatus  `json:"status"`
	TotalImages     int        `json:"total_images"`
	ProcessedImages int        `json:"processed_images"`
	Faces           int        `json:"faces"`
	Groups          int        `json:"groups"`
	Force           bool       `json:"force"`
	Error           string     `json:"error,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ScanJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// setStatus updates the job status, recording completion time for
// terminal states.
func (j *ScanJob) setStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	if status == JobStatusCompleted || status == JobStatusFailed {
		now := time.Now()
		j.CompletedAt = &now
	}
}

// snapshot returns a copy of the job safe to serialize while the scan
// goroutine keeps updating it.
func (j *ScanJob) snapshot() ScanJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ScanJob{
		ID:              j.ID,
		Folder:          j.Folder,
		Status:          j.Status,
		TotalImages:     j.TotalImages,
		ProcessedImages: j.ProcessedImages,
		Faces:           j.Faces,
		Groups:          j.Groups,
		Force:           j.Force,
		Error:           j.Error,
		Warnings:        append([]string(nil), j.Warnings...),
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for
// async jobs. Embed this in job structs to get AddListener, RemoveListener,
// and SendEvent methods.
type EventBroadcaster struct {
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async scan jobs.
type JobManager struct {
	jobs map[string]*ScanJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ScanJob),
	}
}

// CreateJob creates a new scan job.
func (m *JobManager) CreateJob(id, folder string, force bool) *ScanJob {
	job := &ScanJob{
		ID:        id,
		Folder:    folder,
		Status:    JobStatusPending,
		Force:     force,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}
