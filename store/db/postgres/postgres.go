package postgres

import (
	"context"
	"database/sql"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ptattershall/pjais/internal/profile"
	"github.com/ptattershall/pjais/store"
)

// PostgreSQL is the production driver. Vector search is pushed down to
// pgvector; everything else mirrors the SQLite driver.

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL database specified by its DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// Single-persona deployments need only a small pool.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// IsInitialized checks whether the schema has been applied.
func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'memory'`,
	).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "failed to check schema")
	}
	return count > 0, nil
}

// Migrate applies the schema. All statements are idempotent. The pgvector
// extension must be installable by the connecting role.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memory (
	id TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'text',
	name TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	tags JSONB NOT NULL DEFAULT '[]',
	importance INTEGER NOT NULL DEFAULT 50,
	tier TEXT NOT NULL DEFAULT 'warm',
	embedding_model TEXT NOT NULL DEFAULT '',
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_ts BIGINT NOT NULL DEFAULT 0,
	tier_changed_ts BIGINT NOT NULL DEFAULT 0,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL,
	deleted_ts BIGINT
);

CREATE INDEX IF NOT EXISTS idx_memory_persona ON memory (persona_id);
CREATE INDEX IF NOT EXISTS idx_memory_persona_tier ON memory (persona_id, tier);

CREATE TABLE IF NOT EXISTS relationship (
	id TEXT PRIMARY KEY,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	type TEXT NOT NULL,
	strength DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	created_ts BIGINT NOT NULL,
	last_reinforced_ts BIGINT NOT NULL,
	UNIQUE (from_id, to_id, type)
);

CREATE INDEX IF NOT EXISTS idx_relationship_from ON relationship (from_id);
CREATE INDEX IF NOT EXISTS idx_relationship_to ON relationship (to_id);

CREATE TABLE IF NOT EXISTS memory_embedding (
	id BIGSERIAL PRIMARY KEY,
	memory_id TEXT NOT NULL,
	model TEXT NOT NULL,
	embedding vector,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL,
	UNIQUE (memory_id, model)
);

CREATE TABLE IF NOT EXISTS tier_audit (
	id BIGSERIAL PRIMARY KEY,
	memory_id TEXT NOT NULL,
	from_tier TEXT NOT NULL,
	to_tier TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tier_audit_memory ON tier_audit (memory_id);
`
