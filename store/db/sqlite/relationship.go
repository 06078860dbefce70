package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ptattershall/pjais/store"
)

const relationshipFields = "id, from_id, to_id, type, strength, confidence, created_ts, last_reinforced_ts"

func (d *DB) UpsertRelationship(ctx context.Context, upsert *store.Relationship) (*store.Relationship, error) {
	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	if upsert.LastReinforcedTs == 0 {
		upsert.LastReinforcedTs = now
	}

	stmt := `INSERT INTO relationship (id, from_id, to_id, type, strength, confidence, created_ts, last_reinforced_ts)
		VALUES (` + placeholders(8) + `)
		ON CONFLICT (from_id, to_id, type)
		DO UPDATE SET
			strength = excluded.strength,
			confidence = excluded.confidence,
			last_reinforced_ts = excluded.last_reinforced_ts
		RETURNING ` + relationshipFields

	var r store.Relationship
	var relType string
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.ID,
		upsert.FromID,
		upsert.ToID,
		string(upsert.Type),
		upsert.Strength,
		upsert.Confidence,
		upsert.CreatedTs,
		upsert.LastReinforcedTs,
	).Scan(
		&r.ID,
		&r.FromID,
		&r.ToID,
		&relType,
		&r.Strength,
		&r.Confidence,
		&r.CreatedTs,
		&r.LastReinforcedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert relationship")
	}
	r.Type = store.RelationshipType(relType)

	return &r, nil
}

func (d *DB) ListRelationships(ctx context.Context, find *store.FindRelationship) ([]*store.Relationship, error) {
	if find == nil {
		find = &store.FindRelationship{}
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.FromID != nil {
		where, args = append(where, "from_id = ?"), append(args, *find.FromID)
	}
	if find.ToID != nil {
		where, args = append(where, "to_id = ?"), append(args, *find.ToID)
	}
	if find.MemoryID != nil {
		where = append(where, "(from_id = ? OR to_id = ?)")
		args = append(args, *find.MemoryID, *find.MemoryID)
	}
	if find.Type != nil {
		where, args = append(where, "type = ?"), append(args, string(*find.Type))
	}

	query := `SELECT ` + relationshipFields + ` FROM relationship WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC, id ASC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list relationships")
	}
	defer rows.Close()

	list := []*store.Relationship{}
	for rows.Next() {
		var r store.Relationship
		var relType string
		if err := rows.Scan(
			&r.ID,
			&r.FromID,
			&r.ToID,
			&relType,
			&r.Strength,
			&r.Confidence,
			&r.CreatedTs,
			&r.LastReinforcedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan relationship")
		}
		r.Type = store.RelationshipType(relType)
		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) UpdateRelationship(ctx context.Context, update *store.UpdateRelationship) (*store.Relationship, error) {
	set, args := []string{}, []any{}

	if update.Strength != nil {
		set, args = append(set, "strength = ?"), append(args, *update.Strength)
	}
	if update.Confidence != nil {
		set, args = append(set, "confidence = ?"), append(args, *update.Confidence)
	}
	if update.LastReinforcedTs != nil {
		set, args = append(set, "last_reinforced_ts = ?"), append(args, *update.LastReinforcedTs)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	args = append(args, update.ID)

	stmt := `UPDATE relationship SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update relationship")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, errors.Errorf("relationship %s not found", update.ID)
	}

	list, err := d.ListRelationships(ctx, &store.FindRelationship{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("relationship %s not found after update", update.ID)
	}
	return list[0], nil
}

func (d *DB) DeleteRelationship(ctx context.Context, delete *store.DeleteRelationship) (bool, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM relationship WHERE id = ?`, delete.ID)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete relationship")
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (d *DB) DeleteRelationshipsByMemory(ctx context.Context, memoryID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM relationship WHERE from_id = ? OR to_id = ?`, memoryID, memoryID); err != nil {
		return errors.Wrap(err, "failed to delete relationships by memory")
	}
	return nil
}
