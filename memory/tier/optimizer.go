package tier

import (
	"context"
	"log/slog"
	"time"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/store"
)

// OptimizationResult reports the outcome of a single tier optimization pass.
// Outcomes are per-item: a failed record never aborts the sweep.
type OptimizationResult struct {
	Scanned    int           `json:"scanned"`
	Promoted   int           `json:"promoted"`
	Demoted    int           `json:"demoted"`
	Failed     int           `json:"failed"`
	Moves      []TierMove    `json:"moves,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"duration_ms"`
}

// TierMove records a single applied tier transition.
type TierMove struct {
	MemoryID string     `json:"memory_id"`
	From     store.Tier `json:"from"`
	To       store.Tier `json:"to"`
	Score    float64    `json:"score"`
}

// Optimizer runs tier optimization sweeps over a persona's live memories.
type Optimizer struct {
	store  *store.Store
	scorer *Scorer
}

// NewOptimizer creates an optimizer.
func NewOptimizer(s *store.Store, scorer *Scorer) *Optimizer {
	return &Optimizer{store: s, scorer: scorer}
}

// Run iterates all live records of a persona once, applying the scorer's
// recommendation with hysteresis. Each record's change is committed
// independently, so the sweep can be canceled mid-pass without corrupting
// state, and re-running with no intervening access is a no-op.
func (o *Optimizer) Run(ctx context.Context, personaID string) (*OptimizationResult, error) {
	start := time.Now()
	result := &OptimizationResult{}

	memories, err := o.store.ListMemories(ctx, &store.FindMemory{
		PersonaID:      &personaID,
		ExcludeDeleted: true,
	})
	if err != nil {
		return nil, errors.DependencyFailure("failed to list memories for optimization", err)
	}

	for _, m := range memories {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			result.DurationMs = result.Duration.Milliseconds()
			return result, errors.ContextCanceled(err)
		}

		result.Scanned++
		decision := o.scorer.Decide(m)
		if !decision.ShouldMove {
			continue
		}

		if err := o.applyMove(ctx, m, decision); err != nil {
			slog.Warn("tier move failed, skipping record",
				"memory_id", m.ID,
				"target", decision.Target,
				"error", err,
			)
			result.Failed++
			continue
		}

		if tierRank(decision.Target) > tierRank(m.Tier) {
			result.Promoted++
		} else {
			result.Demoted++
		}
		result.Moves = append(result.Moves, TierMove{
			MemoryID: m.ID,
			From:     m.Tier,
			To:       decision.Target,
			Score:    decision.Score,
		})
	}

	result.Duration = time.Since(start)
	result.DurationMs = result.Duration.Milliseconds()
	return result, nil
}

func (o *Optimizer) applyMove(ctx context.Context, m *store.Memory, decision Decision) error {
	now := time.Now().Unix()
	target := decision.Target

	if _, err := o.store.UpdateMemory(ctx, &store.UpdateMemory{
		ID:            m.ID,
		Tier:          &target,
		TierChangedTs: &now,
	}); err != nil {
		return err
	}

	if _, err := o.store.CreateTierAudit(ctx, &store.TierAudit{
		MemoryID: m.ID,
		FromTier: m.Tier,
		ToTier:   target,
		Reason:   "optimize",
	}); err != nil {
		// The move itself succeeded; a missing audit row is not worth
		// failing the record over.
		slog.Warn("failed to record tier audit", "memory_id", m.ID, "error", err)
	}

	return nil
}
