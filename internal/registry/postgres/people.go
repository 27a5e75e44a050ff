package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/jvanek/facegroups/internal/registry"
)

// PersonRepository provides pgvector-backed person storage and matching.
// It satisfies both registry.Storage and registry.Registry: MatchFace
// runs natively on the database's cosine-distance index.
type PersonRepository struct {
	pool *Pool
}

// NewPersonRepository creates a new person repository.
func NewPersonRepository(pool *Pool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

// AddPerson inserts a person, assigning an id when missing.
func (r *PersonRepository) AddPerson(ctx context.Context, p *registry.Person) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO people (id, name) VALUES ($1, $2)`, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	for _, emb := range p.Embeddings {
		if err := r.AddEmbedding(ctx, p.ID, emb); err != nil {
			return err
		}
	}
	return nil
}

// AddEmbedding attaches a reference embedding to a person.
func (r *PersonRepository) AddEmbedding(ctx context.Context, personID string, embedding []float32) error {
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO person_embeddings (person_id, embedding) VALUES ($1, $2)`,
		personID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("insert person embedding: %w", err)
	}
	return nil
}

// LookupPerson returns the person with the given id, or nil.
func (r *PersonRepository) LookupPerson(ctx context.Context, id string) (*registry.Person, error) {
	var p registry.Person
	err := r.pool.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM people WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}

	if err := r.loadEmbeddings(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPeople returns every registered person with their embeddings.
func (r *PersonRepository) ListPeople(ctx context.Context) ([]registry.Person, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM people ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	var people []registry.Person
	for rows.Next() {
		var p registry.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}

	for i := range people {
		if err := r.loadEmbeddings(ctx, &people[i]); err != nil {
			return nil, err
		}
	}
	return people, nil
}

func (r *PersonRepository) loadEmbeddings(ctx context.Context, p *registry.Person) error {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT embedding FROM person_embeddings WHERE person_id = $1 ORDER BY id`, p.ID)
	if err != nil {
		return fmt.Errorf("query person embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return fmt.Errorf("scan person embedding: %w", err)
		}
		p.Embeddings = append(p.Embeddings, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate person embeddings: %w", err)
	}
	return nil
}

// MatchFace finds people whose reference embeddings are closest to the
// query, using the cosine-distance index. Per-person best confidence is
// aggregated in SQL.
func (r *PersonRepository) MatchFace(ctx context.Context, embedding []float32, threshold float64, maxResults int) ([]registry.Match, error) {
	if maxResults <= 0 {
		maxResults = 1
	}

	query := `
		SELECT person_id, MAX(1 - (embedding <=> $1)) AS confidence
		FROM person_embeddings
		GROUP BY person_id
		HAVING MAX(1 - (embedding <=> $1)) >= $2
		ORDER BY confidence DESC
		LIMIT $3
	`

	rows, err := r.pool.db.QueryContext(ctx, query, pgvector.NewVector(embedding), threshold, maxResults)
	if err != nil {
		return nil, fmt.Errorf("match face: %w", err)
	}
	defer rows.Close()

	var matches []registry.Match
	for rows.Next() {
		var m registry.Match
		if err := rows.Scan(&m.PersonID, &m.Confidence); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if m.Confidence < 0 {
			m.Confidence = 0
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}
