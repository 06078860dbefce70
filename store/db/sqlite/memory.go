package sqlite

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
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.PersonaID != nil {
		where, args = append(where, "persona_id = ?"), append(args, *find.PersonaID)
	}
	if find.Tier != nil {
		where, args = append(where, "tier = ?"), append(args, string(*find.Tier))
	}
	if find.ContentSearch != nil && *find.ContentSearch != "" {
		pattern := "%" + strings.ToLower(*find.ContentSearch) + "%"
		where = append(where, "(LOWER(content) LIKE ? OR LOWER(name) LIKE ? OR LOWER(summary) LIKE ? OR LOWER(tags) LIKE ?)")
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

	if update.Content != nil {
		set, args = append(set, "content = ?"), append(args, *update.Content)
	}
	if update.Type != nil {
		set, args = append(set, "type = ?"), append(args, *update.Type)
	}
	if update.Name != nil {
		set, args = append(set, "name = ?"), append(args, *update.Name)
	}
	if update.Summary != nil {
		set, args = append(set, "summary = ?"), append(args, *update.Summary)
	}
	if update.Tags != nil {
		set, args = append(set, "tags = ?"), append(args, marshalStrings(update.Tags))
	}
	if update.Importance != nil {
		set, args = append(set, "importance = ?"), append(args, *update.Importance)
	}
	if update.Tier != nil {
		set, args = append(set, "tier = ?"), append(args, string(*update.Tier))
	}
	if update.EmbeddingModel != nil {
		set, args = append(set, "embedding_model = ?"), append(args, *update.EmbeddingModel)
	}
	if update.AccessCount != nil {
		set, args = append(set, "access_count = ?"), append(args, *update.AccessCount)
	}
	if update.LastAccessedTs != nil {
		set, args = append(set, "last_accessed_ts = ?"), append(args, *update.LastAccessedTs)
	}
	if update.TierChangedTs != nil {
		set, args = append(set, "tier_changed_ts = ?"), append(args, *update.TierChangedTs)
	}
	if update.SetDeletedTs {
		if update.DeletedTs != nil {
			set, args = append(set, "deleted_ts = ?"), append(args, *update.DeletedTs)
		} else {
			set = append(set, "deleted_ts = NULL")
		}
	}

	updatedTs := time.Now().Unix()
	if update.UpdatedTs != nil {
		updatedTs = *update.UpdatedTs
	}
	set, args = append(set, "updated_ts = ?"), append(args, updatedTs)
	args = append(args, update.ID)

	stmt := `UPDATE memory SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update memory")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, errors.Errorf("memory %s not found", update.ID)
	}

	list, err := d.ListMemories(ctx, &store.FindMemory{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("memory %s not found after update", update.ID)
	}
	return list[0], nil
}

func (d *DB) DeleteMemory(ctx context.Context, delete *store.DeleteMemory) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM memory WHERE id = ?`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete memory")
	}
	return nil
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
