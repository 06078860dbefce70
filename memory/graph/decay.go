package graph

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/store"
)

// Decay applies time-based strength decay to every edge of a persona's
// graph in one pass. Strength decays multiplicatively per elapsed day since
// the edge was last reinforced; edges falling below the floor are removed.
// Each surviving edge's reinforcement timestamp is advanced to now, so an
// immediate second pass observes zero elapsed time and changes nothing.
func (g *Service) Decay(ctx context.Context, personaID string) (*DecayResult, error) {
	idx, err := g.buildIndex(ctx, personaID)
	if err != nil {
		return nil, err
	}

	now := g.now()
	result := &DecayResult{}

	for _, edge := range idx.edges {
		if err := ctx.Err(); err != nil {
			return result, errors.ContextCanceled(err)
		}
		result.Scanned++

		elapsedDays := now.Sub(timeOf(edge.LastReinforcedTs)).Hours() / 24
		if elapsedDays <= 0 {
			continue
		}

		rate := g.decayRate(edge.Type)
		decayed := edge.Strength * math.Pow(rate, elapsedDays)

		if decayed < g.config.DecayFloor {
			if _, err := g.store.DeleteRelationship(ctx, &store.DeleteRelationship{ID: edge.ID}); err != nil {
				slog.Warn("failed to remove decayed relationship", "relationship_id", edge.ID, "error", err)
				continue
			}
			result.Removed++
			continue
		}
		if decayed >= edge.Strength {
			continue
		}

		ts := now.Unix()
		if _, err := g.store.UpdateRelationship(ctx, &store.UpdateRelationship{
			ID:               edge.ID,
			Strength:         &decayed,
			LastReinforcedTs: &ts,
		}); err != nil {
			slog.Warn("failed to decay relationship", "relationship_id", edge.ID, "error", err)
			continue
		}
		result.Decayed++
	}

	slog.Debug("relationship decay pass complete",
		"persona_id", personaID,
		"scanned", result.Scanned,
		"decayed", result.Decayed,
		"removed", result.Removed,
	)
	return result, nil
}

func timeOf(ts int64) time.Time {
	return time.Unix(ts, 0)
}

// decayRate returns the per-day decay factor for a relationship type.
func (g *Service) decayRate(t store.RelationshipType) float64 {
	if rate, ok := g.config.DecayRates[t]; ok && rate > 0 && rate <= 1 {
		return rate
	}
	return g.config.DecayRate
}
