package cmd

import (
	"context"
	"fmt"

	"github.com/jvanek/facegroups/internal/config"
	"github.com/jvanek/facegroups/internal/detect"
	"github.com/jvanek/facegroups/internal/registry"
	"github.com/jvanek/facegroups/internal/registry/mariadb"
	"github.com/jvanek/facegroups/internal/registry/postgres"
	"github.com/jvanek/facegroups/internal/store"
)

// openStore opens the aggregate store under the configured data dir.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening data dir: %w", err)
	}
	return st, nil
}

// newDetector creates the remote detection client from config.
func newDetector(cfg *config.Config) detect.Detector {
	return detect.NewRemoteDetector(cfg.Detector.URL)
}

// openRegistry connects the configured person registry backend. Returns a
// nil registry when no backend is configured; the returned cleanup is
// always safe to call.
func openRegistry(ctx context.Context, cfg *config.Config) (registry.Registry, func(), error) {
	noop := func() {}

	switch cfg.Registry.Backend {
	case "":
		return nil, noop, nil

	case "postgres":
		pool, err := postgres.NewPool(&cfg.Registry)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx, cfg.Detector.Dim); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("migrating PostgreSQL schema: %w", err)
		}
		return postgres.NewPersonRepository(pool), func() { _ = pool.Close() }, nil

	case "mariadb":
		pool, err := mariadb.NewPool(cfg.Registry.MariaDBDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to MariaDB: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("migrating MariaDB schema: %w", err)
		}
		st := mariadb.NewPersonStore(pool)
		// MariaDB has no vector search; matching runs through the
		// in-memory HNSW index.
		var idx *registry.PersonIndex
		if cfg.Registry.IndexPath != "" {
			idx, err = registry.NewIndexedFromFile(ctx, st, cfg.Registry.IndexPath)
		} else {
			idx, err = registry.NewIndexed(ctx, st)
		}
		if err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("building person index: %w", err)
		}
		return idx, func() { _ = pool.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}

// openRegistryStorage connects the configured backend and returns its raw
// storage interface for registry management commands.
func openRegistryStorage(ctx context.Context, cfg *config.Config) (registry.Storage, func(), error) {
	noop := func() {}

	switch cfg.Registry.Backend {
	case "":
		return nil, noop, fmt.Errorf("FACEGROUPS_REGISTRY_BACKEND is not configured")

	case "postgres":
		pool, err := postgres.NewPool(&cfg.Registry)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx, cfg.Detector.Dim); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("migrating PostgreSQL schema: %w", err)
		}
		return postgres.NewPersonRepository(pool), func() { _ = pool.Close() }, nil

	case "mariadb":
		pool, err := mariadb.NewPool(cfg.Registry.MariaDBDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to MariaDB: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("migrating MariaDB schema: %w", err)
		}
		return mariadb.NewPersonStore(pool), func() { _ = pool.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}
