// Package search ranks candidate memories against a query by embedding
// similarity.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ptattershall/pjais/memory/embed"
	"github.com/ptattershall/pjais/store"
)

// Options controls a semantic search request.
type Options struct {
	// Threshold is the minimum similarity for a candidate to rank
	// (default 0.1).
	Threshold float64
	// Limit caps the number of ranked results (default 10).
	Limit int
}

// DefaultOptions returns the default search options.
func DefaultOptions() Options {
	return Options{Threshold: 0.1, Limit: 10}
}

// Candidate pairs a memory with its embedding vector. A nil vector marks an
// unembedded candidate: it is skipped from ranking but counted in metadata.
type Candidate struct {
	Memory *store.Memory
	Vector []float32
}

// Match is a single ranked search result.
type Match struct {
	Memory      *store.Memory `json:"memory"`
	Similarity  float64       `json:"similarity"`
	Rank        int           `json:"rank"`
	Explanation string        `json:"explanation,omitempty"`
}

// Result is the outcome of a semantic search.
type Result struct {
	Matches []Match `json:"matches"`
	// TotalCandidates is the number of candidates considered.
	TotalCandidates int `json:"total_candidates"`
	// Unembedded is the number of candidates skipped for missing embeddings.
	Unembedded int   `json:"unembedded"`
	ElapsedMs  int64 `json:"elapsed_ms"`
}

// Engine ranks candidates against query embeddings.
type Engine struct {
	embeddings *embed.Cache
}

// NewEngine creates a search engine over the given embedding cache.
func NewEngine(embeddings *embed.Cache) *Engine {
	return &Engine{embeddings: embeddings}
}

// Search embeds the query and ranks candidates by cosine similarity.
// Candidates below the threshold or without embeddings are excluded from the
// ranked list; a candidate that fails to score is skipped, never fatal.
func (e *Engine) Search(ctx context.Context, query string, candidates []Candidate, opts Options) (*Result, error) {
	queryVector, err := e.embeddings.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.rank(queryVector, nil, candidates, opts), nil
}

// FindSimilar ranks candidates against a target vector. When target is
// non-nil each match carries a human-readable explanation; explanation
// generation is best-effort and never fails the ranking.
func (e *Engine) FindSimilar(target *store.Memory, targetVector []float32, candidates []Candidate, opts Options) *Result {
	return e.rank(targetVector, target, candidates, opts)
}

func (e *Engine) rank(queryVector []float32, target *store.Memory, candidates []Candidate, opts Options) *Result {
	start := time.Now()
	if opts.Threshold == 0 {
		opts.Threshold = 0.1
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	result := &Result{TotalCandidates: len(candidates)}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.Memory == nil || c.Memory.Deleted() {
			continue
		}
		if target != nil && c.Memory.ID == target.ID {
			continue
		}
		if len(c.Vector) == 0 {
			result.Unembedded++
			continue
		}

		similarity := embed.Cosine(queryVector, c.Vector)
		if similarity < opts.Threshold {
			continue
		}
		matches = append(matches, Match{
			Memory:     c.Memory,
			Similarity: similarity,
		})
	}

	// Descending similarity; ties broken by descending importance then
	// ascending id for determinism.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Memory.Importance != matches[j].Memory.Importance {
			return matches[i].Memory.Importance > matches[j].Memory.Importance
		}
		return matches[i].Memory.ID < matches[j].Memory.ID
	})

	if len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	for i := range matches {
		matches[i].Rank = i + 1
		if target != nil {
			matches[i].Explanation = explain(target, matches[i].Memory, matches[i].Similarity)
		}
	}

	result.Matches = matches
	result.ElapsedMs = time.Since(start).Milliseconds()
	if result.ElapsedMs < 0 {
		slog.Warn("negative elapsed time in search result")
		result.ElapsedMs = 0
	}
	return result
}

// explain builds a short human-readable reason for a similarity match.
func explain(target, other *store.Memory, similarity float64) string {
	parts := []string{}

	if shared := sharedTags(target.Tags, other.Tags); shared > 0 {
		noun := "tags"
		if shared == 1 {
			noun = "tag"
		}
		parts = append(parts, fmt.Sprintf("shares %d %s", shared, noun))
	}
	if overlap := contentOverlap(target.Content, other.Content); overlap > 0 {
		parts = append(parts, fmt.Sprintf("%d%% content overlap", overlap))
	}
	parts = append(parts, fmt.Sprintf("%.0f%% semantic similarity", similarity*100))

	return strings.Join(parts, ", ")
}

func sharedTags(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, tag := range a {
		set[strings.ToLower(tag)] = true
	}
	count := 0
	seen := make(map[string]bool, len(b))
	for _, tag := range b {
		lower := strings.ToLower(tag)
		if set[lower] && !seen[lower] {
			count++
			seen[lower] = true
		}
	}
	return count
}

// contentOverlap returns the percentage of the smaller word set shared by
// both contents.
func contentOverlap(a, b string) int {
	wordsA := tokenize(a)
	wordsB := tokenize(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	if len(wordsB) < len(wordsA) {
		wordsA, wordsB = wordsB, wordsA
	}
	larger := make(map[string]bool, len(wordsB))
	for word := range wordsB {
		larger[word] = true
	}
	shared := 0
	for word := range wordsA {
		if larger[word] {
			shared++
		}
	}
	return shared * 100 / len(wordsA)
}

func tokenize(content string) map[string]bool {
	words := make(map[string]bool)
	for _, word := range strings.Fields(embed.Normalize(content)) {
		words[word] = true
	}
	return words
}
