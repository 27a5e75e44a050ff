package registry

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
)

// HNSW parameters for person reference embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	hnswMaxNeighbors = 16

	// searchMultiplier requests extra candidates so a person with several
	// reference embeddings does not crowd out other people from top-k.
	searchMultiplier = 4
)

// PersonIndex is an in-memory ANN index over every reference embedding in
// a registry backend. It satisfies Registry on top of any Storage.
type PersonIndex struct {
	storage Storage

	mu         sync.RWMutex
	graph      *hnsw.Graph[string]
	nodePerson map[string]string // embedding node key -> person id
	people     map[string]*Person
}

// NewIndexed builds a PersonIndex from the backend's current contents.
func NewIndexed(ctx context.Context, storage Storage) (*PersonIndex, error) {
	idx := &PersonIndex{storage: storage}
	if err := idx.Rebuild(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Rebuild reloads all people from storage and rebuilds the graph.
func (idx *PersonIndex) Rebuild(ctx context.Context) error {
	people, err := idx.storage.ListPeople(ctx)
	if err != nil {
		return fmt.Errorf("listing people: %w", err)
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	nodePerson := make(map[string]string)
	byID := make(map[string]*Person, len(people))

	for i := range people {
		p := &people[i]
		byID[p.ID] = p
		for _, emb := range p.Embeddings {
			if len(emb) == 0 {
				continue
			}
			key := uuid.NewString()
			g.Add(hnsw.MakeNode(key, emb))
			nodePerson[key] = p.ID
		}
	}

	idx.mu.Lock()
	idx.graph = g
	idx.nodePerson = nodePerson
	idx.people = byID
	idx.mu.Unlock()
	return nil
}

// MatchFace searches the index and aggregates per-person best confidence.
func (idx *PersonIndex) MatchFace(ctx context.Context, embedding []float32, threshold float64, maxResults int) ([]Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil || len(idx.nodePerson) == 0 {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 1
	}

	neighbors := idx.graph.Search(embedding, maxResults*searchMultiplier)

	best := make(map[string]float64)
	for _, n := range neighbors {
		personID, ok := idx.nodePerson[n.Key]
		if !ok {
			continue
		}
		conf := confidence(embedding, n.Value)
		if conf >= threshold && conf > best[personID] {
			best[personID] = conf
		}
	}

	matches := make([]Match, 0, len(best))
	for id, conf := range best {
		matches = append(matches, Match{PersonID: id, Confidence: conf})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].PersonID < matches[j].PersonID
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// LookupPerson serves lookups from the indexed snapshot.
func (idx *PersonIndex) LookupPerson(ctx context.Context, id string) (*Person, error) {
	idx.mu.RLock()
	p := idx.people[id]
	idx.mu.RUnlock()
	if p != nil {
		return p, nil
	}
	return idx.storage.LookupPerson(ctx, id)
}

// confidence maps cosine similarity to a [0,1] match confidence.
func confidence(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
