package graph

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/store"
)

// Service manages the relationship graph of a persona's memories.
type Service struct {
	store  *store.Store
	config Config

	// now is injectable for tests.
	now func() time.Time
}

// NewService creates a relationship graph service.
func NewService(s *store.Store, config Config) *Service {
	if config.DecayRate <= 0 || config.DecayRate > 1 {
		config.DecayRate = DefaultConfig().DecayRate
	}
	if config.DecayFloor <= 0 {
		config.DecayFloor = DefaultConfig().DecayFloor
	}
	if config.MaxPathHops <= 0 {
		config.MaxPathHops = DefaultConfig().MaxPathHops
	}
	return &Service{store: s, config: config, now: time.Now}
}

// Create links two live memories with a typed, weighted edge. Self-loops and
// edges to missing or deleted memories are rejected. Creating the same
// (from, to, type) triple again reinforces the existing edge instead of
// duplicating it.
func (g *Service) Create(ctx context.Context, fromID, toID string, typ store.RelationshipType, strength, confidence float64) (*store.Relationship, error) {
	if fromID == toID {
		return nil, errors.InvalidArgument("relationship cannot link a memory to itself")
	}
	if !validType(typ) {
		return nil, errors.InvalidArgument("unknown relationship type %q", typ)
	}
	if _, err := g.liveMemory(ctx, fromID); err != nil {
		return nil, err
	}
	if _, err := g.liveMemory(ctx, toID); err != nil {
		return nil, err
	}

	now := g.now().Unix()
	relationship, err := g.store.UpsertRelationship(ctx, &store.Relationship{
		ID:               shortuuid.New(),
		FromID:           fromID,
		ToID:             toID,
		Type:             typ,
		Strength:         clamp01(strength),
		Confidence:       clamp01(confidence),
		CreatedTs:        now,
		LastReinforcedTs: now,
	})
	if err != nil {
		return nil, errors.DependencyFailure("failed to create relationship", err)
	}
	return relationship, nil
}

// UpdateStrength sets an edge's strength (and optionally confidence) and
// touches its reinforcement timestamp, resetting the decay clock.
func (g *Service) UpdateStrength(ctx context.Context, id string, strength float64, confidence *float64) (*store.Relationship, error) {
	existing, err := g.store.GetRelationship(ctx, id)
	if err != nil {
		return nil, errors.DependencyFailure("failed to get relationship", err)
	}
	if existing == nil {
		return nil, errors.NotFound("relationship", id)
	}

	clamped := clamp01(strength)
	now := g.now().Unix()
	update := &store.UpdateRelationship{
		ID:               id,
		Strength:         &clamped,
		LastReinforcedTs: &now,
	}
	if confidence != nil {
		c := clamp01(*confidence)
		update.Confidence = &c
	}

	relationship, err := g.store.UpdateRelationship(ctx, update)
	if err != nil {
		return nil, errors.DependencyFailure("failed to update relationship", err)
	}
	return relationship, nil
}

// Get returns a relationship by id, or NotFound.
func (g *Service) Get(ctx context.Context, id string) (*store.Relationship, error) {
	relationship, err := g.store.GetRelationship(ctx, id)
	if err != nil {
		return nil, errors.DependencyFailure("failed to get relationship", err)
	}
	if relationship == nil {
		return nil, errors.NotFound("relationship", id)
	}
	return relationship, nil
}

// List lists a memory's incident edges, in both directions.
func (g *Service) List(ctx context.Context, memoryID string) ([]*store.Relationship, error) {
	list, err := g.store.ListRelationships(ctx, &store.FindRelationship{MemoryID: &memoryID})
	if err != nil {
		return nil, errors.DependencyFailure("failed to list relationships", err)
	}
	return list, nil
}

// Delete removes an edge. Deleting an absent edge is not an error; the
// returned bool reports whether a row was actually removed.
func (g *Service) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := g.store.DeleteRelationship(ctx, &store.DeleteRelationship{ID: id})
	if err != nil {
		return false, errors.DependencyFailure("failed to delete relationship", err)
	}
	return deleted, nil
}

// DeleteByMemory removes every edge incident to a memory. Called when the
// memory itself is deleted so the graph never holds dangling endpoints.
func (g *Service) DeleteByMemory(ctx context.Context, memoryID string) error {
	if err := g.store.DeleteRelationshipsByMemory(ctx, memoryID); err != nil {
		return errors.DependencyFailure("failed to delete relationships of memory", err)
	}
	return nil
}

// liveMemory fetches a memory and rejects missing or soft-deleted records.
func (g *Service) liveMemory(ctx context.Context, id string) (*store.Memory, error) {
	m, err := g.store.GetMemory(ctx, id)
	if err != nil {
		return nil, errors.DependencyFailure("failed to get memory", err)
	}
	if m == nil {
		return nil, errors.NotFound("memory", id)
	}
	if m.Deleted() {
		return nil, errors.InvalidArgument("memory %s is deleted", id)
	}
	return m, nil
}

// index is an in-memory adjacency view over a persona's live memories and
// their edges. It is rebuilt from the store on demand and discarded after
// use; the rows remain the source of truth.
type index struct {
	nodes map[string]*store.Memory
	// out and in hold edges by their from / to endpoint.
	out   map[string][]*store.Relationship
	in    map[string][]*store.Relationship
	edges map[string]*store.Relationship
}

// buildIndex loads a persona's live memories and the edges between them.
// Edges touching a deleted or foreign memory are excluded from the view.
func (g *Service) buildIndex(ctx context.Context, personaID string) (*index, error) {
	memories, err := g.store.ListMemories(ctx, &store.FindMemory{
		PersonaID:      &personaID,
		ExcludeDeleted: true,
	})
	if err != nil {
		return nil, errors.DependencyFailure("failed to list memories for graph index", err)
	}

	idx := &index{
		nodes: make(map[string]*store.Memory, len(memories)),
		out:   make(map[string][]*store.Relationship),
		in:    make(map[string][]*store.Relationship),
		edges: make(map[string]*store.Relationship),
	}
	for _, m := range memories {
		idx.nodes[m.ID] = m
	}

	for _, m := range memories {
		list, err := g.store.ListRelationships(ctx, &store.FindRelationship{FromID: &m.ID})
		if err != nil {
			return nil, errors.DependencyFailure("failed to list relationships for graph index", err)
		}
		for _, r := range list {
			if _, ok := idx.nodes[r.ToID]; !ok {
				continue
			}
			idx.edges[r.ID] = r
			idx.out[r.FromID] = append(idx.out[r.FromID], r)
			idx.in[r.ToID] = append(idx.in[r.ToID], r)
		}
	}
	return idx, nil
}

// neighbors returns the edges incident to a node. When directed is true only
// outgoing edges are returned.
func (idx *index) neighbors(id string, directed bool) []*store.Relationship {
	if directed {
		return idx.out[id]
	}
	edges := make([]*store.Relationship, 0, len(idx.out[id])+len(idx.in[id]))
	edges = append(edges, idx.out[id]...)
	edges = append(edges, idx.in[id]...)
	return edges
}

// other returns the opposite endpoint of an edge relative to id.
func other(r *store.Relationship, id string) string {
	if r.FromID == id {
		return r.ToID
	}
	return r.FromID
}

func validType(t store.RelationshipType) bool {
	switch t {
	case store.RelationshipSimilar, store.RelationshipCausal, store.RelationshipTemporal,
		store.RelationshipDerived, store.RelationshipContradicts, store.RelationshipElaborates:
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
