package store

import "context"

// Tier is the coarse recency/importance bucket of a memory record.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// Valid reports whether the tier is one of hot/warm/cold.
func (t Tier) Valid() bool {
	switch t {
	case TierHot, TierWarm, TierCold:
		return true
	}
	return false
}

// Memory represents a persona-scoped unit of recall.
type Memory struct {
	ID        string
	PersonaID string
	Content   string
	Type      string // free-form, e.g. "text", "fact"
	Name      string
	Summary   string
	Tags      []string
	// Importance is clamped to [0, 100].
	Importance int
	Tier       Tier

	// Embedding metadata. The vector itself lives in MemoryEmbedding rows.
	EmbeddingModel string

	AccessCount int
	// LastAccessedTs is 0 when the memory has never been accessed.
	LastAccessedTs int64
	// TierChangedTs is the time of the last tier transition.
	TierChangedTs int64
	CreatedTs     int64
	UpdatedTs     int64
	// DeletedTs is nil while the memory is live.
	DeletedTs *int64
}

// Deleted reports whether the memory is soft-deleted.
func (m *Memory) Deleted() bool {
	return m.DeletedTs != nil
}

// FindMemory specifies the conditions for finding memories.
type FindMemory struct {
	ID        *string
	PersonaID *string
	Tier      *Tier
	// ContentSearch matches case-insensitively against content, name,
	// summary and tags.
	ContentSearch *string
	// ExcludeDeleted excludes soft-deleted rows.
	ExcludeDeleted bool
	Limit          int
	Offset         int
}

// UpdateMemory specifies a partial update of a single memory row.
// The update is applied atomically.
type UpdateMemory struct {
	ID             string
	Content        *string
	Type           *string
	Name           *string
	Summary        *string
	Tags           []string
	Importance     *int
	Tier           *Tier
	EmbeddingModel *string
	AccessCount    *int
	LastAccessedTs *int64
	TierChangedTs  *int64
	UpdatedTs      *int64
	// DeletedTs soft-deletes (non-nil value) or restores (explicit nil via
	// SetDeletedTs) the row.
	DeletedTs    *int64
	SetDeletedTs bool
}

// DeleteMemory specifies a hard delete of a single memory row.
type DeleteMemory struct {
	ID string
}

// CreateMemory creates a memory row.
func (s *Store) CreateMemory(ctx context.Context, create *Memory) (*Memory, error) {
	m, err := s.driver.CreateMemory(ctx, create)
	if err != nil {
		return nil, err
	}
	s.memoryCache.Set(ctx, m.ID, m)
	return m, nil
}

// GetMemory gets a memory by id, or nil when it does not exist.
func (s *Store) GetMemory(ctx context.Context, id string) (*Memory, error) {
	if v, ok := s.memoryCache.Get(ctx, id); ok {
		if m, ok := v.(*Memory); ok {
			return m, nil
		}
	}

	list, err := s.driver.ListMemories(ctx, &FindMemory{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	s.memoryCache.Set(ctx, id, list[0])
	return list[0], nil
}

// ListMemories lists memory rows.
func (s *Store) ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error) {
	return s.driver.ListMemories(ctx, find)
}

// UpdateMemory applies a partial update to a memory row.
func (s *Store) UpdateMemory(ctx context.Context, update *UpdateMemory) (*Memory, error) {
	m, err := s.driver.UpdateMemory(ctx, update)
	if err != nil {
		return nil, err
	}
	s.memoryCache.Set(ctx, m.ID, m)
	return m, nil
}

// DeleteMemory hard-deletes a memory row along with its embeddings and
// incident relationships.
func (s *Store) DeleteMemory(ctx context.Context, delete *DeleteMemory) error {
	if err := s.driver.DeleteRelationshipsByMemory(ctx, delete.ID); err != nil {
		return err
	}
	if err := s.driver.DeleteMemoryEmbedding(ctx, delete.ID); err != nil {
		return err
	}
	if err := s.driver.DeleteMemory(ctx, delete); err != nil {
		return err
	}
	s.memoryCache.Delete(ctx, delete.ID)
	return nil
}
