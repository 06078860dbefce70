// Package graph maintains the weighted, typed relationship graph between
// memories: edge lifecycle, decay, traversal, shortest paths and analytics.
//
// The persisted relationship rows are the source of truth. The adjacency
// index built here is a rebuildable view over them, keyed by memory
// identifier, so there are never dangling in-memory references.
package graph

import (
	"time"

	"github.com/ptattershall/pjais/store"
)

// Config holds the relationship graph policy.
type Config struct {
	// DecayRate is the per-day multiplicative strength decay applied by a
	// decay pass.
	DecayRate float64
	// DecayRates overrides DecayRate per relationship type. Types absent
	// from the map use the uniform DecayRate.
	DecayRates map[store.RelationshipType]float64
	// DecayFloor removes edges whose strength falls below it.
	DecayFloor float64

	// MaxPathHops bounds shortest-path searches on pathological graphs.
	MaxPathHops int

	// AutoCreateConfidence is the minimum proposal confidence applied by
	// AutoCreate.
	AutoCreateConfidence float64
	// MinTagSimilarity is the minimum Jaccard similarity between tag sets
	// for a discovery proposal.
	MinTagSimilarity float64
	// MinSemanticSimilarity is the minimum similarity score for a semantic
	// discovery proposal.
	MinSemanticSimilarity float64
	// TemporalWindow is the creation-time distance within which two
	// memories are considered temporally proximate.
	TemporalWindow time.Duration
	// MaxProposals caps the proposals returned by one discovery pass.
	MaxProposals int
}

// DefaultConfig returns the default graph policy. Decay is uniform across
// relationship types unless DecayRates overrides it.
func DefaultConfig() Config {
	return Config{
		DecayRate:             0.95,
		DecayFloor:            0.05,
		MaxPathHops:           20,
		AutoCreateConfidence:  0.6,
		MinTagSimilarity:      0.25,
		MinSemanticSimilarity: 0.7,
		TemporalWindow:        24 * time.Hour,
		MaxProposals:          10,
	}
}

// SortKey selects the ordering of traversal results.
type SortKey string

const (
	SortByStrength   SortKey = "strength"
	SortByConfidence SortKey = "confidence"
	SortByRecency    SortKey = "recency"
)

// RelatedOptions controls a GetRelated traversal.
type RelatedOptions struct {
	// MaxDepth is the maximum hop count from the origin (default 1).
	MaxDepth int
	// MinStrength filters edges below the given strength unless
	// IncludeDecayed is set.
	MinStrength float64
	// Types restricts traversal to the given relationship types. Empty
	// means all types.
	Types []store.RelationshipType
	// IncludeDecayed disables the MinStrength filter.
	IncludeDecayed bool
	// SortBy orders results (default strength). Ties are broken by
	// relationship id for stability.
	SortBy SortKey
}

// RelatedMemory is a single traversal result: the memory, the edge by which
// it was first reached, and its hop distance from the origin.
type RelatedMemory struct {
	Memory       *store.Memory       `json:"memory"`
	Relationship *store.Relationship `json:"relationship"`
	Distance     int                 `json:"distance"`
}

// Path is an ordered edge list connecting two memories.
type Path struct {
	Edges []*store.Relationship `json:"edges"`
	// Reversed is true when no directed path existed and the path was found
	// over the undirected view of the graph.
	Reversed bool `json:"reversed"`
}

// Hops returns the path length in hops.
func (p *Path) Hops() int {
	return len(p.Edges)
}

// DecayResult reports the outcome of a decay pass.
type DecayResult struct {
	Scanned int `json:"scanned"`
	Decayed int `json:"decayed"`
	Removed int `json:"removed"`
}

// Proposal is a candidate relationship produced by discovery. Discovery
// never mutates the graph; AutoCreate applies proposals above the
// confidence threshold.
type Proposal struct {
	FromID     string                 `json:"from_id"`
	ToID       string                 `json:"to_id"`
	Type       store.RelationshipType `json:"type"`
	Strength   float64                `json:"strength"`
	Confidence float64                `json:"confidence"`
	Reason     string                 `json:"reason"`
}

// Analytics is a read-only aggregate over a persona's graph.
type Analytics struct {
	TotalRelationships  int                            `json:"total_relationships"`
	AverageStrength     float64                        `json:"average_strength"`
	MostConnectedMemory string                         `json:"most_connected_memory,omitempty"`
	RelationshipsByType map[store.RelationshipType]int `json:"relationships_by_type"`
	// GraphDensity is edges / (nodes * (nodes - 1)) over the directed graph.
	GraphDensity float64 `json:"graph_density"`
	// ClustersFound counts connected components over the undirected view,
	// considering only nodes with at least one edge.
	ClustersFound int `json:"clusters_found"`
}
