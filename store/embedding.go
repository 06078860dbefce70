package store

import "context"

// MemoryEmbedding represents the vector embedding of a memory.
// Dimensionality is constant per model identifier.
type MemoryEmbedding struct {
	ID        int64
	MemoryID  string
	Embedding []float32
	Model     string // model identifier, e.g. "text-embedding-3-small"
	CreatedTs int64
	UpdatedTs int64
}

// FindMemoryEmbedding is the find condition for memory embeddings.
type FindMemoryEmbedding struct {
	MemoryID  *string
	PersonaID *string
	Model     *string
}

// MemoryWithScore represents a vector search result with similarity score.
type MemoryWithScore struct {
	Memory *Memory
	Score  float32 // cosine similarity, higher is more similar
}

// VectorSearchOptions represents the options for vector search.
type VectorSearchOptions struct {
	PersonaID string    // required, only search memories of this persona
	Vector    []float32 // query vector
	Model     string    // model identifier the query vector belongs to
	Limit     int       // number of results to return, default 10
}

// UpsertMemoryEmbedding inserts or updates a memory embedding.
func (s *Store) UpsertMemoryEmbedding(ctx context.Context, embedding *MemoryEmbedding) (*MemoryEmbedding, error) {
	return s.driver.UpsertMemoryEmbedding(ctx, embedding)
}

// GetMemoryEmbedding gets the embedding of a specific memory, or nil when
// none has been generated yet.
func (s *Store) GetMemoryEmbedding(ctx context.Context, memoryID, model string) (*MemoryEmbedding, error) {
	list, err := s.driver.ListMemoryEmbeddings(ctx, &FindMemoryEmbedding{
		MemoryID: &memoryID,
		Model:    &model,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListMemoryEmbeddings lists memory embeddings.
func (s *Store) ListMemoryEmbeddings(ctx context.Context, find *FindMemoryEmbedding) ([]*MemoryEmbedding, error) {
	return s.driver.ListMemoryEmbeddings(ctx, find)
}

// DeleteMemoryEmbedding deletes all embeddings of a memory.
func (s *Store) DeleteMemoryEmbedding(ctx context.Context, memoryID string) error {
	return s.driver.DeleteMemoryEmbedding(ctx, memoryID)
}

// VectorSearch performs vector similarity search over live memories.
func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*MemoryWithScore, error) {
	return s.driver.VectorSearch(ctx, opts)
}

// FindMemoriesWithoutEmbedding lists live memories that have no embedding
// for the given model. Used by the background embedding runner.
func (s *Store) FindMemoriesWithoutEmbedding(ctx context.Context, model string, limit int) ([]*Memory, error) {
	return s.driver.FindMemoriesWithoutEmbedding(ctx, model, limit)
}
