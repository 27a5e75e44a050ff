// Package registry provides the cross-folder known-person registry: a
// store of named identities with reference embeddings, a face-match query
// over it, and the matcher that auto-labels groups from it.
package registry

import (
	"context"
	"time"
)

// Person is an entry in the known-person registry.
type Person struct {
	ID         string
	Name       string
	Embeddings [][]float32 // reference embeddings
	CreatedAt  time.Time
}

// Match is one ranked registry match for a query embedding.
type Match struct {
	PersonID   string
	Confidence float64 // cosine similarity clamped to [0,1]
}

// Registry is the query contract the core consumes.
type Registry interface {
	// MatchFace returns up to maxResults people whose reference
	// embeddings match the query at or above threshold, best first.
	MatchFace(ctx context.Context, embedding []float32, threshold float64, maxResults int) ([]Match, error)
	// LookupPerson returns the person with the given id, or nil.
	LookupPerson(ctx context.Context, id string) (*Person, error)
}

// Storage is the persistence contract registry backends implement.
type Storage interface {
	ListPeople(ctx context.Context) ([]Person, error)
	LookupPerson(ctx context.Context, id string) (*Person, error)
	AddPerson(ctx context.Context, p *Person) error
	AddEmbedding(ctx context.Context, personID string, embedding []float32) error
}
