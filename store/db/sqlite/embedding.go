package sqlite

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ptattershall/pjais/store"
)

// SQLite has no vector index; similarity search loads candidate vectors and
// ranks them in-process. Acceptable for the per-persona memory counts this
// driver targets.

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
			embedding = excluded.embedding,
			updated_ts = excluded.updated_ts
		RETURNING id, created_ts, updated_ts`

	err := d.db.QueryRowContext(ctx, stmt,
		embedding.MemoryID,
		embedding.Model,
		marshalVector(embedding.Embedding),
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
		where, args = append(where, "e.memory_id = ?"), append(args, *find.MemoryID)
	}
	if find.Model != nil {
		where, args = append(where, "e.model = ?"), append(args, *find.Model)
	}
	if find.PersonaID != nil {
		where = append(where, "e.memory_id IN (SELECT id FROM memory WHERE persona_id = ?)")
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
		var vector string
		if err := rows.Scan(&e.ID, &e.MemoryID, &vector, &e.Model, &e.CreatedTs, &e.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan memory embedding")
		}
		e.Embedding = unmarshalVector(vector)
		list = append(list, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) DeleteMemoryEmbedding(ctx context.Context, memoryID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM memory_embedding WHERE memory_id = ?`, memoryID); err != nil {
		return errors.Wrap(err, "failed to delete memory embedding")
	}
	return nil
}

// VectorSearch performs a brute-force cosine similarity scan over the live
// memories of a persona.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.MemoryWithScore, error) {
	if opts == nil || len(opts.Vector) == 0 {
		return nil, errors.New("vector search requires a query vector")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	embeddings, err := d.ListMemoryEmbeddings(ctx, &store.FindMemoryEmbedding{
		PersonaID: &opts.PersonaID,
		Model:     &opts.Model,
	})
	if err != nil {
		return nil, err
	}

	scored := []*store.MemoryWithScore{}
	for _, e := range embeddings {
		score := cosineSimilarity(opts.Vector, e.Embedding)
		memories, err := d.ListMemories(ctx, &store.FindMemory{ID: &e.MemoryID, ExcludeDeleted: true})
		if err != nil {
			return nil, err
		}
		if len(memories) == 0 {
			continue
		}
		scored = append(scored, &store.MemoryWithScore{Memory: memories[0], Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

func (d *DB) FindMemoriesWithoutEmbedding(ctx context.Context, model string, limit int) ([]*store.Memory, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + memoryFields + ` FROM memory
		WHERE deleted_ts IS NULL
			AND id NOT IN (SELECT memory_id FROM memory_embedding WHERE model = ?)
		ORDER BY created_ts DESC
		LIMIT ?`

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

// cosineSimilarity returns 0 for zero-magnitude or mismatched vectors.
func cosineSimilarity(a, b []float32) float32 {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
