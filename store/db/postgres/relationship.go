package postgres

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
			strength = EXCLUDED.strength,
			confidence = EXCLUDED.confidence,
			last_reinforced_ts = EXCLUDED.last_reinforced_ts
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
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.FromID != nil {
		where, args = append(where, "from_id = "+placeholder(len(args)+1)), append(args, *find.FromID)
	}
	if find.ToID != nil {
		where, args = append(where, "to_id = "+placeholder(len(args)+1)), append(args, *find.ToID)
	}
	if find.MemoryID != nil {
		n := len(args)
		where = append(where, fmt.Sprintf("(from_id = $%d OR to_id = $%d)", n+1, n+2))
		args = append(args, *find.MemoryID, *find.MemoryID)
	}
	if find.Type != nil {
		where, args = append(where, "type = "+placeholder(len(args)+1)), append(args, string(*find.Type))
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
		set = append(set, "strength = "+placeholder(len(args)+1))
		args = append(args, *update.Strength)
	}
	if update.Confidence != nil {
		set = append(set, "confidence = "+placeholder(len(args)+1))
		args = append(args, *update.Confidence)
	}
	if update.LastReinforcedTs != nil {
		set = append(set, "last_reinforced_ts = "+placeholder(len(args)+1))
		args = append(args, *update.LastReinforcedTs)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	args = append(args, update.ID)

	stmt := `UPDATE relationship SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + relationshipFields

	var r store.Relationship
	var relType string
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
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
		return nil, errors.Wrapf(err, "failed to update relationship %s", update.ID)
	}
	r.Type = store.RelationshipType(relType)

	return &r, nil
}

func (d *DB) DeleteRelationship(ctx context.Context, delete *store.DeleteRelationship) (bool, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM relationship WHERE id = $1`, delete.ID)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete relationship")
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (d *DB) DeleteRelationshipsByMemory(ctx context.Context, memoryID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM relationship WHERE from_id = $1 OR to_id = $1`, memoryID); err != nil {
		return errors.Wrap(err, "failed to delete relationships by memory")
	}
	return nil
}
