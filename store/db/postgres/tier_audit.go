package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ptattershall/pjais/store"
)

func (d *DB) CreateTierAudit(ctx context.Context, create *store.TierAudit) (*store.TierAudit, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}

	stmt := `INSERT INTO tier_audit (memory_id, from_tier, to_tier, reason, created_ts)
		VALUES (` + placeholders(5) + `)
		RETURNING id`

	err := d.db.QueryRowContext(ctx, stmt,
		create.MemoryID,
		string(create.FromTier),
		string(create.ToTier),
		create.Reason,
		create.CreatedTs,
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tier audit")
	}

	return create, nil
}

func (d *DB) ListTierAudits(ctx context.Context, find *store.FindTierAudit) ([]*store.TierAudit, error) {
	if find == nil {
		find = &store.FindTierAudit{}
	}

	where, args := []string{"1 = 1"}, []any{}
	if find.MemoryID != nil {
		where, args = append(where, "memory_id = "+placeholder(len(args)+1)), append(args, *find.MemoryID)
	}

	query := `SELECT id, memory_id, from_tier, to_tier, reason, created_ts
		FROM tier_audit WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC, id DESC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tier audits")
	}
	defer rows.Close()

	list := []*store.TierAudit{}
	for rows.Next() {
		var a store.TierAudit
		var fromTier, toTier string
		if err := rows.Scan(&a.ID, &a.MemoryID, &fromTier, &toTier, &a.Reason, &a.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan tier audit")
		}
		a.FromTier = store.Tier(fromTier)
		a.ToTier = store.Tier(toTier)
		list = append(list, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
