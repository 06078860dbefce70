package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ptattershall/pjais/store"
)

const memoryFields = "id, persona_id, content, type, name, summary, tags, importance, tier, embedding_model, access_count, last_accessed_ts, tier_changed_ts, created_ts, updated_ts, deleted_ts"

func (d *DB) CreateMemory(ctx context.Context, create *store.Memory) (*store.Memory, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = now
	}
	if create.TierChangedTs == 0 {
		create.TierChangedTs = now
	}

	args := []any{
		create.ID,
		create.PersonaID,
		create.Content,
		create.Type,
		create.Name,
		create.Summary,
		marshalStrings(create.Tags),
		create.Importance,
		string(create.Tier),
		create.EmbeddingModel,
		create.AccessCount,
		create.LastAccessedTs,
		create.TierChangedTs,
		create.CreatedTs,
		create.UpdatedTs,
	}

	stmt := `INSERT INTO memory (id, persona_id, content, type, name, summary, tags, importance, tier, embedding_model, access_count, last_accessed_ts, tier_changed_ts, created_ts, updated_ts)
		VALUES (` + placeholders(len(args)) + `)`

	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "failed to create memory")
	}

	return create, nil
}

func (d *DB) ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	if find == nil {
		find = &store.FindMemory{}
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.PersonaID != nil {
		where, args = append(where, "persona_id = "+placeholder(len(args)+1)), append(args, *find.PersonaID)
	}
	if find.Tier != nil {
		where, args = append(where, "tier = "+placeholder(len(args)+1)), append(args, string(*find.Tier))
	}
	if find.ContentSearch != nil && *find.ContentSearch != "" {
		pattern := "%" + *find.ContentSearch + "%"
		n := len(args)
		where = append(where, fmt.Sprintf("(content ILIKE $%d OR name ILIKE $%d OR summary ILIKE $%d OR tags::text ILIKE $%d)", n+1, n+2, n+3, n+4))
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if find.ExcludeDeleted {
		where = append(where, "deleted_ts IS NULL")
	}

	query := `SELECT ` + memoryFields + ` FROM memory WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
		if find.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memories")
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

func (d *DB) UpdateMemory(ctx context.Context, update *store.UpdateMemory) (*store.Memory, error) {
	set, args := []string{}, []any{}

	add := func(field string, value any) {
		set = append(set, field+" = "+placeholder(len(args)+1))
		args = append(args, value)
	}

	if update.Content != nil {
		add("content", *update.Content)
	}
	if update.Type != nil {
		add("type", *update.Type)
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Summary != nil {
		add("summary", *update.Summary)
	}
	if update.Tags != nil {
		add("tags", marshalStrings(update.Tags))
	}
	if update.Importance != nil {
		add("importance", *update.Importance)
	}
	if update.Tier != nil {
		add("tier", string(*update.Tier))
	}
	if update.EmbeddingModel != nil {
		add("embedding_model", *update.EmbeddingModel)
	}
	if update.AccessCount != nil {
		add("access_count", *update.AccessCount)
	}
	if update.LastAccessedTs != nil {
		add("last_accessed_ts", *update.LastAccessedTs)
	}
	if update.TierChangedTs != nil {
		add("tier_changed_ts", *update.TierChangedTs)
	}
	if update.SetDeletedTs {
		if update.DeletedTs != nil {
			add("deleted_ts", *update.DeletedTs)
		} else {
			set = append(set, "deleted_ts = NULL")
		}
	}

	updatedTs := time.Now().Unix()
	if update.UpdatedTs != nil {
		updatedTs = *update.UpdatedTs
	}
	add("updated_ts", updatedTs)

	args = append(args, update.ID)
	stmt := `UPDATE memory SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + memoryFields

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update memory")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, errors.Errorf("memory %s not found", update.ID)
	}
	m, err := scanMemory(rows)
	if err != nil {
		return nil, err
	}
	return m, rows.Err()
}

func (d *DB) DeleteMemory(ctx context.Context, delete *store.DeleteMemory) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM memory WHERE id = $1`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete memory")
	}
	return nil
}

func scanMemoryWithScore(rows *sql.Rows) (*store.Memory, float32, error) {
	var m store.Memory
	var tags, tier string
	var deletedTs sql.NullInt64
	var score float32

	if err := rows.Scan(
		&m.ID,
		&m.PersonaID,
		&m.Content,
		&m.Type,
		&m.Name,
		&m.Summary,
		&tags,
		&m.Importance,
		&tier,
		&m.EmbeddingModel,
		&m.AccessCount,
		&m.LastAccessedTs,
		&m.TierChangedTs,
		&m.CreatedTs,
		&m.UpdatedTs,
		&deletedTs,
		&score,
	); err != nil {
		return nil, 0, errors.Wrap(err, "failed to scan memory with score")
	}

	m.Tags = unmarshalStrings(tags)
	m.Tier = store.Tier(tier)
	if deletedTs.Valid {
		ts := deletedTs.Int64
		m.DeletedTs = &ts
	}
	return &m, score, nil
}

func scanMemory(rows *sql.Rows) (*store.Memory, error) {
	var m store.Memory
	var tags, tier string
	var deletedTs sql.NullInt64

	if err := rows.Scan(
		&m.ID,
		&m.PersonaID,
		&m.Content,
		&m.Type,
		&m.Name,
		&m.Summary,
		&tags,
		&m.Importance,
		&tier,
		&m.EmbeddingModel,
		&m.AccessCount,
		&m.LastAccessedTs,
		&m.TierChangedTs,
		&m.CreatedTs,
		&m.UpdatedTs,
		&deletedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan memory")
	}

	m.Tags = unmarshalStrings(tags)
	m.Tier = store.Tier(tier)
	if deletedTs.Valid {
		ts := deletedTs.Int64
		m.DeletedTs = &ts
	}
	return &m, nil
}
