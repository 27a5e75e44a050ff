package registry

import (
	"context"
	"testing"
)

func seedStorage(t *testing.T) *MemoryStorage {
	t.Helper()
	storage := NewMemoryStorage()
	ctx := context.Background()

	people := []*Person{
		{ID: "alice", Name: "Alice", Embeddings: [][]float32{{1, 0, 0}, {0.9, 0.1, 0}}},
		{ID: "bob", Name: "Bob", Embeddings: [][]float32{{0, 1, 0}}},
		{ID: "carol", Name: "Carol", Embeddings: [][]float32{{0, 0, 1}}},
	}
	for _, p := range people {
		if err := storage.AddPerson(ctx, p); err != nil {
			t.Fatalf("AddPerson(%s): %v", p.Name, err)
		}
	}
	return storage
}

func TestMatchFaceRanksPeople(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndexed(ctx, seedStorage(t))
	if err != nil {
		t.Fatalf("NewIndexed: %v", err)
	}

	matches, err := idx.MatchFace(ctx, []float32{1, 0, 0}, 0.5, 5)
	if err != nil {
		t.Fatalf("MatchFace: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %+v, want only alice above 0.5", matches)
	}
	if matches[0].PersonID != "alice" {
		t.Errorf("best match = %s, want alice", matches[0].PersonID)
	}
	if matches[0].Confidence < 0.999 {
		t.Errorf("confidence = %f, want the exact-duplicate embedding to win", matches[0].Confidence)
	}
}

func TestMatchFaceAggregatesPerPerson(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndexed(ctx, seedStorage(t))
	if err != nil {
		t.Fatal(err)
	}

	// Alice has two reference embeddings; she must still appear once.
	matches, err := idx.MatchFace(ctx, []float32{1, 0.05, 0}, 0.1, 10)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]int{}
	for _, m := range matches {
		seen[m.PersonID]++
	}
	if seen["alice"] != 1 {
		t.Errorf("alice appears %d times, want 1", seen["alice"])
	}
}

func TestMatchFaceThresholdAndLimit(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndexed(ctx, seedStorage(t))
	if err != nil {
		t.Fatal(err)
	}

	// A diagonal query matches everyone weakly.
	query := []float32{1, 1, 1}

	all, err := idx.MatchFace(ctx, query, 0.1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("matches above 0.1 = %d, want 3", len(all))
	}

	strict, err := idx.MatchFace(ctx, query, 0.99, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(strict) != 0 {
		t.Errorf("matches above 0.99 = %+v, want none", strict)
	}

	top, err := idx.MatchFace(ctx, query, 0.1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 {
		t.Errorf("maxResults=1 returned %d matches", len(top))
	}
}

func TestMatchFaceEmptyIndex(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndexed(ctx, NewMemoryStorage())
	if err != nil {
		t.Fatalf("NewIndexed: %v", err)
	}
	matches, err := idx.MatchFace(ctx, []float32{1, 0}, 0.5, 5)
	if err != nil || matches != nil {
		t.Errorf("MatchFace on empty index = (%v, %v), want (nil, nil)", matches, err)
	}
}

func TestRebuildPicksUpNewPeople(t *testing.T) {
	ctx := context.Background()
	storage := seedStorage(t)
	idx, err := NewIndexed(ctx, storage)
	if err != nil {
		t.Fatal(err)
	}

	dora := &Person{ID: "dora", Name: "Dora", Embeddings: [][]float32{{0.7, 0.7, 0}}}
	if err := storage.AddPerson(ctx, dora); err != nil {
		t.Fatal(err)
	}

	before, _ := idx.MatchFace(ctx, []float32{0.7, 0.7, 0}, 0.95, 1)
	if len(before) != 0 {
		t.Fatalf("stale index already matches dora: %+v", before)
	}

	if err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	after, err := idx.MatchFace(ctx, []float32{0.7, 0.7, 0}, 0.95, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 || after[0].PersonID != "dora" {
		t.Errorf("after rebuild = %+v, want dora", after)
	}
}

func TestRebuildListFailure(t *testing.T) {
	storage := NewMemoryStorage()
	storage.ListError = context.DeadlineExceeded
	if _, err := NewIndexed(context.Background(), storage); err == nil {
		t.Error("expected an error when listing people fails")
	}
}

func TestLookupPersonPrefersSnapshot(t *testing.T) {
	ctx := context.Background()
	storage := seedStorage(t)
	idx, err := NewIndexed(ctx, storage)
	if err != nil {
		t.Fatal(err)
	}

	p, err := idx.LookupPerson(ctx, "alice")
	if err != nil || p == nil || p.Name != "Alice" {
		t.Errorf("LookupPerson(alice) = (%+v, %v)", p, err)
	}

	// Someone added after the snapshot is served through the storage fallback.
	eve := &Person{ID: "eve", Name: "Eve"}
	if err := storage.AddPerson(ctx, eve); err != nil {
		t.Fatal(err)
	}
	p, err = idx.LookupPerson(ctx, "eve")
	if err != nil || p == nil || p.Name != "Eve" {
		t.Errorf("LookupPerson(eve) = (%+v, %v)", p, err)
	}

	p, err = idx.LookupPerson(ctx, "nobody")
	if err != nil || p != nil {
		t.Errorf("LookupPerson(nobody) = (%+v, %v), want (nil, nil)", p, err)
	}
}

func TestConfidenceClamps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidence(tt.a, tt.b)
			if got != tt.expected {
				t.Errorf("confidence = %f, want %f", got, tt.expected)
			}
		})
	}
}
