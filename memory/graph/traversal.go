package graph

import (
	"context"
	"sort"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/store"
)

// GetRelated walks the graph breadth-first from a memory and returns the
// memories reachable within the traversal bounds, each at its minimal hop
// distance. Edges are followed in both directions; only edges passing the
// strength and type filters are expanded.
func (g *Service) GetRelated(ctx context.Context, memoryID string, opts RelatedOptions) ([]*RelatedMemory, error) {
	origin, err := g.liveMemory(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1
	}
	if opts.SortBy == "" {
		opts.SortBy = SortByStrength
	}

	idx, err := g.buildIndex(ctx, origin.PersonaID)
	if err != nil {
		return nil, err
	}

	typeSet := make(map[store.RelationshipType]bool, len(opts.Types))
	for _, t := range opts.Types {
		typeSet[t] = true
	}
	passes := func(r *store.Relationship) bool {
		if len(typeSet) > 0 && !typeSet[r.Type] {
			return false
		}
		if !opts.IncludeDecayed && r.Strength < opts.MinStrength {
			return false
		}
		return true
	}

	type visit struct {
		id       string
		distance int
	}
	visited := map[string]bool{memoryID: true}
	queue := []visit{{id: memoryID}}
	results := []*RelatedMemory{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.distance >= opts.MaxDepth {
			continue
		}

		for _, edge := range idx.neighbors(current.id, false) {
			if !passes(edge) {
				continue
			}
			next := other(edge, current.id)
			if visited[next] {
				continue
			}
			visited[next] = true
			results = append(results, &RelatedMemory{
				Memory:       idx.nodes[next],
				Relationship: edge,
				Distance:     current.distance + 1,
			})
			queue = append(queue, visit{id: next, distance: current.distance + 1})
		}
	}

	sortRelated(results, opts.SortBy)
	return results, nil
}

// sortRelated orders traversal results by the chosen key, descending, with
// ties broken by relationship id so ordering is deterministic.
func sortRelated(results []*RelatedMemory, key SortKey) {
	value := func(r *RelatedMemory) float64 {
		switch key {
		case SortByConfidence:
			return r.Relationship.Confidence
		case SortByRecency:
			return float64(r.Relationship.LastReinforcedTs)
		default:
			return r.Relationship.Strength
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		vi, vj := value(results[i]), value(results[j])
		if vi != vj {
			return vi > vj
		}
		return results[i].Relationship.ID < results[j].Relationship.ID
	})
}

// FindPath returns a shortest path between two memories, or nil when none
// exists. Directed edges are tried first; when the directed search fails the
// graph is retried as undirected and the returned path is marked Reversed.
// Searches are capped at MaxPathHops to bound work on pathological graphs.
func (g *Service) FindPath(ctx context.Context, fromID, toID string) (*Path, error) {
	from, err := g.liveMemory(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := g.liveMemory(ctx, toID)
	if err != nil {
		return nil, err
	}
	if from.PersonaID != to.PersonaID {
		return nil, errors.InvalidArgument("memories belong to different personas")
	}
	if fromID == toID {
		return &Path{Edges: []*store.Relationship{}}, nil
	}

	idx, err := g.buildIndex(ctx, from.PersonaID)
	if err != nil {
		return nil, err
	}

	if edges := bfsPath(idx, fromID, toID, true, g.config.MaxPathHops); edges != nil {
		return &Path{Edges: edges}, nil
	}
	if edges := bfsPath(idx, fromID, toID, false, g.config.MaxPathHops); edges != nil {
		return &Path{Edges: edges, Reversed: true}, nil
	}
	return nil, nil
}

// bfsPath runs a breadth-first search and reconstructs the edge sequence of
// the first path found, which is minimal in hop count.
func bfsPath(idx *index, fromID, toID string, directed bool, maxHops int) []*store.Relationship {
	came := map[string]step{fromID: {}}
	queue := []string{fromID}
	depth := map[string]int{fromID: 0}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if depth[current] >= maxHops {
			continue
		}

		for _, edge := range idx.neighbors(current, directed) {
			next := edge.ToID
			if !directed {
				next = other(edge, current)
			}
			if _, seen := came[next]; seen {
				continue
			}
			came[next] = step{prev: current, edge: edge}
			depth[next] = depth[current] + 1
			if next == toID {
				return reconstruct(came, fromID, toID)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func reconstruct(came map[string]step, fromID, toID string) []*store.Relationship {
	edges := []*store.Relationship{}
	for at := toID; at != fromID; {
		s := came[at]
		edges = append(edges, s.edge)
		at = s.prev
	}
	// Reverse into from -> to order.
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	return edges
}

// step is the BFS predecessor record used for path reconstruction.
type step struct {
	prev string
	edge *store.Relationship
}
