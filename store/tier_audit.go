package store

import "context"

// TierAudit records a single tier transition for audit purposes.
type TierAudit struct {
	ID       int64
	MemoryID string
	FromTier Tier
	ToTier   Tier
	// Reason is "manual" for explicit promote/demote, "optimize" for
	// sweep-driven transitions.
	Reason    string
	CreatedTs int64
}

// FindTierAudit specifies the conditions for finding tier audit rows.
type FindTierAudit struct {
	MemoryID *string
	Limit    int
}

// CreateTierAudit creates a tier audit row.
func (s *Store) CreateTierAudit(ctx context.Context, create *TierAudit) (*TierAudit, error) {
	return s.driver.CreateTierAudit(ctx, create)
}

// ListTierAudits lists tier audit rows, most recent first.
func (s *Store) ListTierAudits(ctx context.Context, find *FindTierAudit) ([]*TierAudit, error) {
	return s.driver.ListTierAudits(ctx, find)
}
