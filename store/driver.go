package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that a store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Memory model related methods.
	CreateMemory(ctx context.Context, create *Memory) (*Memory, error)
	ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error)
	UpdateMemory(ctx context.Context, update *UpdateMemory) (*Memory, error)
	DeleteMemory(ctx context.Context, delete *DeleteMemory) error

	// Relationship model related methods.
	UpsertRelationship(ctx context.Context, upsert *Relationship) (*Relationship, error)
	ListRelationships(ctx context.Context, find *FindRelationship) ([]*Relationship, error)
	UpdateRelationship(ctx context.Context, update *UpdateRelationship) (*Relationship, error)
	DeleteRelationship(ctx context.Context, delete *DeleteRelationship) (bool, error)
	DeleteRelationshipsByMemory(ctx context.Context, memoryID string) error

	// MemoryEmbedding model related methods.
	UpsertMemoryEmbedding(ctx context.Context, embedding *MemoryEmbedding) (*MemoryEmbedding, error)
	ListMemoryEmbeddings(ctx context.Context, find *FindMemoryEmbedding) ([]*MemoryEmbedding, error)
	DeleteMemoryEmbedding(ctx context.Context, memoryID string) error
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*MemoryWithScore, error)
	FindMemoriesWithoutEmbedding(ctx context.Context, model string, limit int) ([]*Memory, error)

	// TierAudit model related methods.
	CreateTierAudit(ctx context.Context, create *TierAudit) (*TierAudit, error)
	ListTierAudits(ctx context.Context, find *FindTierAudit) ([]*TierAudit, error)
}
