package store

import "context"

// RelationshipType is the semantic kind of a relationship edge.
type RelationshipType string

const (
	RelationshipSimilar     RelationshipType = "similar"
	RelationshipCausal      RelationshipType = "causal"
	RelationshipTemporal    RelationshipType = "temporal"
	RelationshipDerived     RelationshipType = "derived"
	RelationshipContradicts RelationshipType = "contradicts"
	RelationshipElaborates  RelationshipType = "elaborates"
)

// Relationship represents a directed, typed link between two memories.
// At most one row exists per (from, to, type) triple.
type Relationship struct {
	ID     string
	FromID string
	ToID   string
	Type   RelationshipType
	// Strength and Confidence are clamped to [0, 1].
	Strength   float64
	Confidence float64
	CreatedTs  int64
	// LastReinforcedTs is touched on every strength update.
	LastReinforcedTs int64
}

// FindRelationship specifies the conditions for finding relationships.
type FindRelationship struct {
	ID     *string
	FromID *string
	ToID   *string
	// MemoryID matches rows where the memory is either endpoint.
	MemoryID *string
	Type     *RelationshipType
	Limit    int
}

// UpdateRelationship specifies a partial update of a relationship row.
type UpdateRelationship struct {
	ID               string
	Strength         *float64
	Confidence       *float64
	LastReinforcedTs *int64
}

// DeleteRelationship specifies a delete of a single relationship row.
type DeleteRelationship struct {
	ID string
}

// UpsertRelationship inserts a relationship row, or updates strength,
// confidence and the reinforcement timestamp when the (from, to, type)
// triple already exists.
func (s *Store) UpsertRelationship(ctx context.Context, upsert *Relationship) (*Relationship, error) {
	return s.driver.UpsertRelationship(ctx, upsert)
}

// GetRelationship gets a relationship by id, or nil when it does not exist.
func (s *Store) GetRelationship(ctx context.Context, id string) (*Relationship, error) {
	list, err := s.driver.ListRelationships(ctx, &FindRelationship{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListRelationships lists relationship rows.
func (s *Store) ListRelationships(ctx context.Context, find *FindRelationship) ([]*Relationship, error) {
	return s.driver.ListRelationships(ctx, find)
}

// UpdateRelationship applies a partial update to a relationship row.
func (s *Store) UpdateRelationship(ctx context.Context, update *UpdateRelationship) (*Relationship, error) {
	return s.driver.UpdateRelationship(ctx, update)
}

// DeleteRelationship deletes a relationship row. Returns false when no row
// matched the id.
func (s *Store) DeleteRelationship(ctx context.Context, delete *DeleteRelationship) (bool, error) {
	return s.driver.DeleteRelationship(ctx, delete)
}

// DeleteRelationshipsByMemory deletes all relationships incident to a memory.
func (s *Store) DeleteRelationshipsByMemory(ctx context.Context, memoryID string) error {
	return s.driver.DeleteRelationshipsByMemory(ctx, memoryID)
}
