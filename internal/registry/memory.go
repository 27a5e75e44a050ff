package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage implementation used in tests and
// as the backing store when no database backend is configured.
type MemoryStorage struct {
	mu     sync.RWMutex
	people map[string]*Person

	// Error injection
	ListError   error
	LookupError error
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{people: make(map[string]*Person)}
}

// AddPerson inserts a person, assigning an id when missing.
func (m *MemoryStorage) AddPerson(ctx context.Context, p *Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	stored := *p
	m.people[p.ID] = &stored
	return nil
}

// AddEmbedding attaches a reference embedding to a person.
func (m *MemoryStorage) AddEmbedding(ctx context.Context, personID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.people[personID]; ok {
		p.Embeddings = append(p.Embeddings, embedding)
	}
	return nil
}

// LookupPerson returns the person with the given id, or nil.
func (m *MemoryStorage) LookupPerson(ctx context.Context, id string) (*Person, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.people[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

// ListPeople returns every person in the store.
func (m *MemoryStorage) ListPeople(ctx context.Context) ([]Person, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Person, 0, len(m.people))
	for _, p := range m.people {
		out = append(out, *p)
	}
	return out, nil
}
