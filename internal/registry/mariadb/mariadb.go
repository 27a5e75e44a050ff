// Package mariadb provides a MariaDB-backed known-person registry store.
// Embeddings are stored as JSON; similarity search runs in Go through
// registry.PersonIndex.
package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/google/uuid"

	"github.com/jvanek/facegroups/internal/registry"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the registry schema. Idempotent.
func (p *Pool) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS people (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS person_embeddings (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			person_id VARCHAR(36) NOT NULL,
			embedding JSON NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_person FOREIGN KEY (person_id) REFERENCES people(id) ON DELETE CASCADE
		)`,
	}
	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// PersonStore implements registry.Storage on MariaDB.
type PersonStore struct {
	pool *Pool
}

// NewPersonStore creates a person store over the pool.
func NewPersonStore(pool *Pool) *PersonStore {
	return &PersonStore{pool: pool}
}

// AddPerson inserts a person, assigning an id when missing.
func (s *PersonStore) AddPerson(ctx context.Context, p *registry.Person) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.pool.db.ExecContext(ctx,
		`INSERT INTO people (id, name) VALUES (?, ?)`, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	for _, emb := range p.Embeddings {
		if err := s.AddEmbedding(ctx, p.ID, emb); err != nil {
			return err
		}
	}
	return nil
}

// AddEmbedding attaches a reference embedding to a person.
func (s *PersonStore) AddEmbedding(ctx context.Context, personID string, embedding []float32) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	_, err = s.pool.db.ExecContext(ctx,
		`INSERT INTO person_embeddings (person_id, embedding) VALUES (?, ?)`, personID, raw)
	if err != nil {
		return fmt.Errorf("insert person embedding: %w", err)
	}
	return nil
}

// LookupPerson returns the person with the given id, or nil.
func (s *PersonStore) LookupPerson(ctx context.Context, id string) (*registry.Person, error) {
	var p registry.Person
	err := s.pool.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM people WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	if err := s.loadEmbeddings(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPeople returns every registered person with their embeddings.
func (s *PersonStore) ListPeople(ctx context.Context) ([]registry.Person, error) {
	rows, err := s.pool.db.QueryContext(ctx,
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
		if err := s.loadEmbeddings(ctx, &people[i]); err != nil {
			return nil, err
		}
	}
	return people, nil
}

func (s *PersonStore) loadEmbeddings(ctx context.Context, p *registry.Person) error {
	rows, err := s.pool.db.QueryContext(ctx,
		`SELECT embedding FROM person_embeddings WHERE person_id = ? ORDER BY id`, p.ID)
	if err != nil {
		return fmt.Errorf("query person embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan person embedding: %w", err)
		}
		var emb []float32
		if err := json.Unmarshal(raw, &emb); err != nil {
			return fmt.Errorf("decode embedding: %w", err)
		}
		p.Embeddings = append(p.Embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate person embeddings: %w", err)
	}
	return nil
}
