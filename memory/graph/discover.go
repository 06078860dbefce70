package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/store"
)

// Discover proposes candidate relationships for a memory without mutating
// the graph. Three signals contribute: tag overlap, semantic similarity of
// embeddings, and temporal proximity of creation times. Pairs that already
// have an edge of the proposed type are skipped, as are deleted memories.
func (g *Service) Discover(ctx context.Context, memoryID string) ([]*Proposal, error) {
	origin, err := g.liveMemory(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	peers, err := g.store.ListMemories(ctx, &store.FindMemory{
		PersonaID:      &origin.PersonaID,
		ExcludeDeleted: true,
	})
	if err != nil {
		return nil, errors.DependencyFailure("failed to list memories for discovery", err)
	}

	existing, err := g.store.ListRelationships(ctx, &store.FindRelationship{MemoryID: &memoryID})
	if err != nil {
		return nil, errors.DependencyFailure("failed to list relationships for discovery", err)
	}
	connected := make(map[string]bool, len(existing))
	for _, r := range existing {
		connected[other(r, memoryID)+"/"+string(r.Type)] = true
	}

	// Keyed by target and type so overlapping signals keep the strongest
	// proposal for a pair.
	proposals := make(map[string]*Proposal)
	add := func(p *Proposal) {
		if connected[p.ToID+"/"+string(p.Type)] {
			return
		}
		key := p.ToID + "/" + string(p.Type)
		if prior, ok := proposals[key]; ok && prior.Confidence >= p.Confidence {
			return
		}
		proposals[key] = p
	}

	for _, peer := range peers {
		if peer.ID == origin.ID {
			continue
		}

		if jaccard := tagJaccard(origin.Tags, peer.Tags); jaccard >= g.config.MinTagSimilarity {
			add(&Proposal{
				FromID:     origin.ID,
				ToID:       peer.ID,
				Type:       store.RelationshipSimilar,
				Strength:   jaccard,
				Confidence: 0.5 + jaccard/2,
				Reason:     fmt.Sprintf("tag overlap %.0f%%", jaccard*100),
			})
		}

		if gap := absInt64(origin.CreatedTs - peer.CreatedTs); gap <= int64(g.config.TemporalWindow.Seconds()) {
			closeness := 1 - float64(gap)/g.config.TemporalWindow.Seconds()
			add(&Proposal{
				FromID:     origin.ID,
				ToID:       peer.ID,
				Type:       store.RelationshipTemporal,
				Strength:   0.3 + 0.4*closeness,
				Confidence: 0.3 + 0.4*closeness,
				Reason:     fmt.Sprintf("created within %s", g.config.TemporalWindow),
			})
		}
	}

	if err := g.semanticProposals(ctx, origin, add); err != nil {
		// Semantic discovery is best-effort: tag and temporal proposals are
		// still valid without it.
		slog.Warn("semantic discovery unavailable", "memory_id", origin.ID, "error", err)
	}

	ranked := make([]*Proposal, 0, len(proposals))
	for _, p := range proposals {
		ranked = append(ranked, p)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].ToID < ranked[j].ToID
	})
	if g.config.MaxProposals > 0 && len(ranked) > g.config.MaxProposals {
		ranked = ranked[:g.config.MaxProposals]
	}
	return ranked, nil
}

// semanticProposals adds similarity proposals from vector search over the
// origin's embedding. A memory without an embedding yields none.
func (g *Service) semanticProposals(ctx context.Context, origin *store.Memory, add func(*Proposal)) error {
	if origin.EmbeddingModel == "" {
		return nil
	}
	embedding, err := g.store.GetMemoryEmbedding(ctx, origin.ID, origin.EmbeddingModel)
	if err != nil {
		return err
	}
	if embedding == nil {
		return nil
	}

	limit := g.config.MaxProposals
	if limit <= 0 {
		limit = 10
	}
	scored, err := g.store.VectorSearch(ctx, &store.VectorSearchOptions{
		PersonaID: origin.PersonaID,
		Vector:    embedding.Embedding,
		Model:     origin.EmbeddingModel,
		Limit:     limit + 1, // origin ranks itself first
	})
	if err != nil {
		return err
	}

	for _, hit := range scored {
		if hit.Memory.ID == origin.ID {
			continue
		}
		score := float64(hit.Score)
		if score < g.config.MinSemanticSimilarity {
			continue
		}
		add(&Proposal{
			FromID:     origin.ID,
			ToID:       hit.Memory.ID,
			Type:       store.RelationshipSimilar,
			Strength:   score,
			Confidence: score,
			Reason:     fmt.Sprintf("semantic similarity %.0f%%", score*100),
		})
	}
	return nil
}

// AutoCreate runs discovery and applies every proposal at or above the
// configured confidence threshold. Existing (from, to, type) edges are
// reinforced rather than duplicated. Per-proposal failures are logged and
// skipped, never fatal.
func (g *Service) AutoCreate(ctx context.Context, memoryID string) ([]*store.Relationship, error) {
	proposals, err := g.Discover(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	created := make([]*store.Relationship, 0, len(proposals))
	for _, p := range proposals {
		if p.Confidence < g.config.AutoCreateConfidence {
			continue
		}
		relationship, err := g.Create(ctx, p.FromID, p.ToID, p.Type, p.Strength, p.Confidence)
		if err != nil {
			slog.Warn("failed to apply discovered relationship",
				"from_id", p.FromID,
				"to_id", p.ToID,
				"type", p.Type,
				"error", err,
			)
			continue
		}
		created = append(created, relationship)
	}
	return created, nil
}

// tagJaccard is the Jaccard similarity of two tag sets, case-insensitive.
func tagJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, tag := range a {
		setA[strings.ToLower(tag)] = true
	}
	union := make(map[string]bool, len(a)+len(b))
	for tag := range setA {
		union[tag] = true
	}
	intersection := 0
	seen := make(map[string]bool, len(b))
	for _, tag := range b {
		lower := strings.ToLower(tag)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		union[lower] = true
		if setA[lower] {
			intersection++
		}
	}
	return float64(intersection) / float64(len(union))
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
