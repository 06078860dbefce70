package graph

import (
	"context"

	"github.com/ptattershall/pjais/store"
)

// ComputeAnalytics aggregates structural statistics over a persona's graph.
// The computation is read-only and reflects a point-in-time snapshot of the
// rebuilt index.
func (g *Service) ComputeAnalytics(ctx context.Context, personaID string) (*Analytics, error) {
	idx, err := g.buildIndex(ctx, personaID)
	if err != nil {
		return nil, err
	}

	analytics := &Analytics{
		TotalRelationships:  len(idx.edges),
		RelationshipsByType: make(map[store.RelationshipType]int),
	}

	degree := make(map[string]int)
	var strengthSum float64
	for _, edge := range idx.edges {
		strengthSum += edge.Strength
		analytics.RelationshipsByType[edge.Type]++
		degree[edge.FromID]++
		degree[edge.ToID]++
	}
	if len(idx.edges) > 0 {
		analytics.AverageStrength = strengthSum / float64(len(idx.edges))
	}

	// Most connected: highest undirected degree, id order breaking ties.
	best := ""
	for id, d := range degree {
		if best == "" || d > degree[best] || (d == degree[best] && id < best) {
			best = id
		}
	}
	analytics.MostConnectedMemory = best

	if n := len(idx.nodes); n > 1 {
		analytics.GraphDensity = float64(len(idx.edges)) / float64(n*(n-1))
	}

	analytics.ClustersFound = countClusters(idx)
	return analytics, nil
}

// countClusters counts connected components over the undirected view,
// considering only nodes with at least one incident edge.
func countClusters(idx *index) int {
	parent := make(map[string]string)

	var find func(string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}
	union := func(a, b string) {
		if _, ok := parent[a]; !ok {
			parent[a] = a
		}
		if _, ok := parent[b]; !ok {
			parent[b] = b
		}
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, edge := range idx.edges {
		union(edge.FromID, edge.ToID)
	}

	roots := make(map[string]bool)
	for id := range parent {
		roots[find(id)] = true
	}
	return len(roots)
}
