package registry

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
)

// indexSnapshot is the on-disk form of a PersonIndex graph. People are
// always reloaded from storage; only the graph construction is cached.
type indexSnapshot struct {
	NodePerson map[string]string
	Graph      []byte
}

// SaveIndex writes the graph and its node-to-person mapping to path
// atomically.
func (idx *PersonIndex) SaveIndex(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil {
		return nil
	}

	var graphBuf bytes.Buffer
	if err := idx.graph.Export(&graphBuf); err != nil {
		return fmt.Errorf("exporting person index: %w", err)
	}

	var out bytes.Buffer
	snap := indexSnapshot{NodePerson: idx.nodePerson, Graph: graphBuf.Bytes()}
	if err := gob.NewEncoder(&out).Encode(&snap); err != nil {
		return fmt.Errorf("encoding person index: %w", err)
	}
	if err := renameio.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing person index: %w", err)
	}
	return nil
}

// NewIndexedFromFile builds a PersonIndex using a cached graph from path
// when present, falling back to a full rebuild (which is then cached).
func NewIndexedFromFile(ctx context.Context, storage Storage, path string) (*PersonIndex, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading person index: %w", err)
		}
		idx, err := NewIndexed(ctx, storage)
		if err != nil {
			return nil, err
		}
		// Cache failures cost a rebuild next time, nothing more.
		_ = idx.SaveIndex(path)
		return idx, nil
	}

	var snap indexSnapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding person index: %w", err)
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	if err := g.Import(bytes.NewReader(snap.Graph)); err != nil {
		return nil, fmt.Errorf("importing person index: %w", err)
	}

	people, err := storage.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	byID := make(map[string]*Person, len(people))
	for i := range people {
		byID[people[i].ID] = &people[i]
	}

	idx := &PersonIndex{storage: storage}
	idx.graph = g
	idx.nodePerson = snap.NodePerson
	idx.people = byID
	return idx, nil
}
