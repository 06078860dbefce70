package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/ptattershall/pjais/internal/profile"
	"github.com/ptattershall/pjais/store"
)

// SQLite is the default driver for local, single-persona deployments.
// Embedding vectors are stored as JSON and similarity is computed in-process;
// for large memory sets prefer PostgreSQL with pgvector.

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a SQLite database specified by its DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// WAL keeps readers unblocked during the single-writer update path.
	dsn := profile.DSN + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// SQLite allows a single writer; a pool larger than one connection only
	// produces SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

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
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'memory'`,
	).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "failed to check schema")
	}
	return count > 0, nil
}

// Migrate applies the schema. All statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS memory (
	id TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'text',
	name TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	importance INTEGER NOT NULL DEFAULT 50,
	tier TEXT NOT NULL DEFAULT 'warm',
	embedding_model TEXT NOT NULL DEFAULT '',
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_ts INTEGER NOT NULL DEFAULT 0,
	tier_changed_ts INTEGER NOT NULL DEFAULT 0,
	created_ts INTEGER NOT NULL,
	updated_ts INTEGER NOT NULL,
	deleted_ts INTEGER
);

CREATE INDEX IF NOT EXISTS idx_memory_persona ON memory (persona_id);
CREATE INDEX IF NOT EXISTS idx_memory_persona_tier ON memory (persona_id, tier);

CREATE TABLE IF NOT EXISTS relationship (
	id TEXT PRIMARY KEY,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	type TEXT NOT NULL,
	strength REAL NOT NULL DEFAULT 0.5,
	confidence REAL NOT NULL DEFAULT 0.5,
	created_ts INTEGER NOT NULL,
	last_reinforced_ts INTEGER NOT NULL,
	UNIQUE (from_id, to_id, type)
);

CREATE INDEX IF NOT EXISTS idx_relationship_from ON relationship (from_id);
CREATE INDEX IF NOT EXISTS idx_relationship_to ON relationship (to_id);

CREATE TABLE IF NOT EXISTS memory_embedding (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id TEXT NOT NULL,
	model TEXT NOT NULL,
	embedding TEXT NOT NULL,
	created_ts INTEGER NOT NULL,
	updated_ts INTEGER NOT NULL,
	UNIQUE (memory_id, model)
);

CREATE TABLE IF NOT EXISTS tier_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id TEXT NOT NULL,
	from_tier TEXT NOT NULL,
	to_tier TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_ts INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tier_audit_memory ON tier_audit (memory_id);
`
