package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/ptattershall/pjais/store"
)

func (d *DB) UpsertMemoryEmbedding(ctx context.Context, embedding *store.MemoryEmbedding) (*store.MemoryEmbedding, error) {
	now := time.Now().Unix()
	if embedding.CreatedTs == 0 {
		embedding.CreatedTs = now
	}
	embedding.UpdatedTs = now

	stmt := `INSERT INTO memory_embedding (memory_id, model, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (memory_id, model)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts, updated_ts`

	vector := pgvector.NewVector(embedding.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		embedding.MemoryID,
		embedding.Model,
		vector,
		embedding.CreatedTs,
		embedding.UpdatedTs,
	).Scan(&embedding.ID, &embedding.CreatedTs, &embedding.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert memory embedding")
	}

	return embedding, nil
}

func (d *DB) ListMemoryEmbeddings(ctx context.Context, find *store.FindMemoryEmbedding) ([]*store.MemoryEmbedding, error) {
	if find == nil {
		find = &store.FindMemoryEmbedding{}
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.MemoryID != nil {
		where, args = append(where, "e.memory_id = "+placeholder(len(args)+1)), append(args, *find.MemoryID)
	}
	if find.Model != nil {
		where, args = append(where, "e.model = "+placeholder(len(args)+1)), append(args, *find.Model)
	}
	if find.PersonaID != nil {
		where = append(where, "e.memory_id IN (SELECT id FROM memory WHERE persona_id = "+placeholder(len(args)+1)+")")
		args = append(args, *find.PersonaID)
	}

	query := `SELECT e.id, e.memory_id, e.embedding, e.model, e.created_ts, e.updated_ts
		FROM memory_embedding e
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY e.created_ts DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory embeddings")
	}
	defer rows.Close()

	list := []*store.MemoryEmbedding{}
	for rows.Next() {
		var e store.MemoryEmbedding
		var vector pgvector.Vector
		if err := rows.Scan(&e.ID, &e.MemoryID, &vector, &e.Model, &e.CreatedTs, &e.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan memory embedding")
		}
		e.Embedding = vector.Slice()
		list = append(list, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) DeleteMemoryEmbedding(ctx context.Context, memoryID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM memory_embedding WHERE memory_id = $1`, memoryID); err != nil {
		return errors.Wrap(err, "failed to delete memory embedding")
	}
	return nil
}

// VectorSearch performs vector similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine similarity).
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.MemoryWithScore, error) {
	if opts == nil || len(opts.Vector) == 0 {
		return nil, errors.New("vector search requires a query vector")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + prefixedMemoryFields("m") + `, 1 - (e.embedding <=> $1) AS score
		FROM memory_embedding e
		JOIN memory m ON m.id = e.memory_id
		WHERE m.persona_id = $2
			AND m.deleted_ts IS NULL
			AND e.model = $3
		ORDER BY e.embedding <=> $1
		LIMIT $4`

	rows, err := d.db.QueryContext(ctx, query, pgvector.NewVector(opts.Vector), opts.PersonaID, opts.Model, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform vector search")
	}
	defer rows.Close()

	results := []*store.MemoryWithScore{}
	for rows.Next() {
		m, score, err := scanMemoryWithScore(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &store.MemoryWithScore{Memory: m, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (d *DB) FindMemoriesWithoutEmbedding(ctx context.Context, model string, limit int) ([]*store.Memory, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + memoryFields + ` FROM memory
		WHERE deleted_ts IS NULL
			AND id NOT IN (SELECT memory_id FROM memory_embedding WHERE model = $1)
		ORDER BY created_ts DESC
		LIMIT $2`

	rows, err := d.db.QueryContext(ctx, query, model, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find memories without embedding")
	}
	defer rows.Close()

	list := []*store.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
