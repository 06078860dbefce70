// Package memory exposes the persona memory manager: a single facade over
// tiered storage, semantic retrieval and the relationship graph. All writes
// for a persona are serialized through the manager; reads are lock-free.
package memory

import (
	"context"

	"github.com/ptattershall/pjais/memory/graph"
	"github.com/ptattershall/pjais/memory/search"
	"github.com/ptattershall/pjais/memory/tier"
	"github.com/ptattershall/pjais/store"
)

// CreateMemoryRequest is the input for creating a memory record.
type CreateMemoryRequest struct {
	PersonaID string   `json:"persona_id"`
	Content   string   `json:"content"`
	Type      string   `json:"type,omitempty"`
	Name      string   `json:"name,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	// Importance defaults to 50 when zero and unset importance is desired;
	// out-of-range values are clamped at scoring time.
	Importance int `json:"importance"`
	// Tier defaults to warm.
	Tier store.Tier `json:"tier,omitempty"`
}

// UpdateMemoryRequest is the input for a partial memory update. Nil fields
// are left untouched.
type UpdateMemoryRequest struct {
	Content    *string  `json:"content,omitempty"`
	Type       *string  `json:"type,omitempty"`
	Name       *string  `json:"name,omitempty"`
	Summary    *string  `json:"summary,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Importance *int     `json:"importance,omitempty"`
}

// SearchRequest is the input for keyword search.
type SearchRequest struct {
	PersonaID string      `json:"persona_id"`
	Query     string      `json:"query"`
	Tier      *store.Tier `json:"tier,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
}

// CreateRelationshipRequest is the input for linking two memories. Both
// endpoints must belong to PersonaID.
type CreateRelationshipRequest struct {
	PersonaID  string                 `json:"persona_id"`
	FromID     string                 `json:"from_id"`
	ToID       string                 `json:"to_id"`
	Type       store.RelationshipType `json:"type"`
	Strength   float64                `json:"strength"`
	Confidence float64                `json:"confidence"`
}

// TierMetrics reports occupancy of the three tiers for a persona.
type TierMetrics struct {
	Counts map[store.Tier]int `json:"counts"`
	// Capacities holds the configured soft capacity per tier; 0 means
	// unbounded.
	Capacities map[store.Tier]int `json:"capacities"`
	// Utilization is count/capacity per bounded tier.
	Utilization map[store.Tier]float64 `json:"utilization"`
	Total       int                    `json:"total"`
}

// HealthStatus is the manager's self-reported condition.
type HealthStatus struct {
	// Status is one of "ok", "degraded" or "error". Degraded means the
	// store is reachable but the embedding provider is not.
	Status  string            `json:"status"`
	Details map[string]string `json:"details,omitempty"`
}

// Manager is the single entry point to a persona's memory system.
type Manager interface {
	// Record lifecycle.
	Create(ctx context.Context, req *CreateMemoryRequest) (*store.Memory, error)
	Retrieve(ctx context.Context, personaID, memoryID string) (*store.Memory, error)
	Update(ctx context.Context, personaID, memoryID string, req *UpdateMemoryRequest) (*store.Memory, error)
	Delete(ctx context.Context, personaID, memoryID string) error

	// Batch operations with per-item outcomes.
	BatchCreate(ctx context.Context, reqs []*CreateMemoryRequest) (*BatchResult[*store.Memory], error)
	BatchRetrieve(ctx context.Context, personaID string, memoryIDs []string) (*BatchResult[*store.Memory], error)
	BatchDelete(ctx context.Context, personaID string, memoryIDs []string) (*BatchResult[string], error)

	// Retrieval.
	Search(ctx context.Context, req *SearchRequest) ([]*store.Memory, error)
	SemanticSearch(ctx context.Context, personaID, query string, opts search.Options) (*search.Result, error)
	EnhancedSearch(ctx context.Context, req *SearchRequest) (*search.Result, error)
	FindSimilar(ctx context.Context, personaID, memoryID string, opts search.Options) (*search.Result, error)

	// Tier management.
	Promote(ctx context.Context, personaID, memoryID string, target store.Tier) (*store.Memory, error)
	Demote(ctx context.Context, personaID, memoryID string, target store.Tier) (*store.Memory, error)
	OptimizeTiers(ctx context.Context, personaID string) (*tier.OptimizationResult, error)
	GetScore(ctx context.Context, personaID, memoryID string) (*tier.Decision, error)
	GetTierMetrics(ctx context.Context, personaID string) (*TierMetrics, error)

	// Embeddings.
	GenerateEmbedding(ctx context.Context, personaID, memoryID string) error

	// Relationship graph.
	CreateRelationship(ctx context.Context, req *CreateRelationshipRequest) (*store.Relationship, error)
	UpdateRelationshipStrength(ctx context.Context, personaID, id string, strength float64, confidence *float64) (*store.Relationship, error)
	DeleteRelationship(ctx context.Context, personaID, id string) (bool, error)
	ListRelationships(ctx context.Context, personaID, memoryID string) ([]*store.Relationship, error)
	GetRelated(ctx context.Context, personaID, memoryID string, opts graph.RelatedOptions) ([]*graph.RelatedMemory, error)
	FindPath(ctx context.Context, personaID, fromID, toID string) (*graph.Path, error)
	DecayRelationships(ctx context.Context, personaID string) (*graph.DecayResult, error)
	DiscoverRelationships(ctx context.Context, personaID, memoryID string) ([]*graph.Proposal, error)
	AutoCreateRelationships(ctx context.Context, personaID, memoryID string) ([]*store.Relationship, error)
	GraphAnalytics(ctx context.Context, personaID string) (*graph.Analytics, error)

	// Change notification.
	Subscribe(buffer int) (*Subscription, error)

	Health(ctx context.Context) *HealthStatus
	Close() error
}
