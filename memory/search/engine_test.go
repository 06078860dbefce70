package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptattershall/pjais/memory/embed"
	"github.com/ptattershall/pjais/store"
)

func newTestEngine(mock *embed.Mock) *Engine {
	return NewEngine(embed.NewCache(mock, embed.DefaultCacheConfig()))
}

func memoryCandidate(id string, importance int, vector []float32) Candidate {
	return Candidate{
		Memory: &store.Memory{ID: id, PersonaID: "persona-1", Content: "content " + id, Importance: importance},
		Vector: vector,
	}
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	mock := embed.NewMock(4)
	mock.SetVector("capital of france", []float32{1, 0, 0, 0})
	engine := newTestEngine(mock)

	candidates := []Candidate{
		memoryCandidate("paris", 50, []float32{0.95, 0.05, 0, 0}),
		memoryCandidate("eiffel", 50, []float32{0.7, 0.7, 0, 0}),
		memoryCandidate("tokyo", 50, []float32{0, 1, 0, 0}),
	}

	result, err := engine.Search(context.Background(), "capital of france", candidates, Options{Threshold: 0.5, Limit: 10})
	require.NoError(t, err)

	require.Len(t, result.Matches, 2)
	assert.Equal(t, "paris", result.Matches[0].Memory.ID)
	assert.Equal(t, "eiffel", result.Matches[1].Memory.ID)
	assert.Equal(t, 1, result.Matches[0].Rank)
	assert.Equal(t, 2, result.Matches[1].Rank)
	assert.Greater(t, result.Matches[0].Similarity, result.Matches[1].Similarity)
	assert.Equal(t, 3, result.TotalCandidates)
}

func TestSearchThresholdExcludes(t *testing.T) {
	mock := embed.NewMock(4)
	mock.SetVector("query", []float32{1, 0, 0, 0})
	engine := newTestEngine(mock)

	candidates := []Candidate{
		memoryCandidate("close", 50, []float32{1, 0, 0, 0}),
		memoryCandidate("far", 50, []float32{0, 0, 1, 0}),
	}

	result, err := engine.Search(context.Background(), "query", candidates, Options{Threshold: 0.9, Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "close", result.Matches[0].Memory.ID)
}

func TestSearchTiesBrokenByImportanceThenID(t *testing.T) {
	mock := embed.NewMock(4)
	mock.SetVector("query", []float32{1, 0, 0, 0})
	engine := newTestEngine(mock)

	shared := []float32{1, 0, 0, 0}
	candidates := []Candidate{
		memoryCandidate("bbb", 50, shared),
		memoryCandidate("aaa", 50, shared),
		memoryCandidate("ccc", 90, shared),
	}

	result, err := engine.Search(context.Background(), "query", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, result.Matches, 3)
	assert.Equal(t, "ccc", result.Matches[0].Memory.ID, "higher importance wins the tie")
	assert.Equal(t, "aaa", result.Matches[1].Memory.ID, "equal importance falls back to id order")
	assert.Equal(t, "bbb", result.Matches[2].Memory.ID)
}

func TestSearchSkipsUnembeddedAndDeleted(t *testing.T) {
	mock := embed.NewMock(4)
	mock.SetVector("query", []float32{1, 0, 0, 0})
	engine := newTestEngine(mock)

	ts := int64(1)
	deleted := memoryCandidate("gone", 50, []float32{1, 0, 0, 0})
	deleted.Memory.DeletedTs = &ts

	candidates := []Candidate{
		memoryCandidate("live", 50, []float32{1, 0, 0, 0}),
		memoryCandidate("pending", 50, nil),
		deleted,
	}

	result, err := engine.Search(context.Background(), "query", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "live", result.Matches[0].Memory.ID)
	assert.Equal(t, 1, result.Unembedded)
	assert.Equal(t, 3, result.TotalCandidates)
}

func TestSearchLimit(t *testing.T) {
	mock := embed.NewMock(4)
	mock.SetVector("query", []float32{1, 0, 0, 0})
	engine := newTestEngine(mock)

	candidates := make([]Candidate, 0, 20)
	for i := 0; i < 20; i++ {
		candidates = append(candidates, memoryCandidate(string(rune('a'+i)), 50, []float32{1, 0, 0, 0}))
	}

	result, err := engine.Search(context.Background(), "query", candidates, Options{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, result.Matches, 5)
}

func TestSearchEmptyQueryFails(t *testing.T) {
	engine := newTestEngine(embed.NewMock(4))
	_, err := engine.Search(context.Background(), "   ", nil, Options{})
	assert.Error(t, err)
}

func TestFindSimilarExcludesTargetAndExplains(t *testing.T) {
	engine := newTestEngine(embed.NewMock(4))

	target := &store.Memory{
		ID:      "target",
		Content: "grilled salmon recipe with lemon",
		Tags:    []string{"cooking", "fish"},
	}
	targetVector := []float32{1, 0, 0, 0}

	other := Candidate{
		Memory: &store.Memory{
			ID:      "other",
			Content: "baked salmon recipe with garlic",
			Tags:    []string{"cooking", "dinner"},
		},
		Vector: []float32{0.9, 0.1, 0, 0},
	}
	self := Candidate{Memory: target, Vector: targetVector}

	result := engine.FindSimilar(target, targetVector, []Candidate{self, other}, Options{})
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "other", result.Matches[0].Memory.ID)
	assert.Contains(t, result.Matches[0].Explanation, "shares 1 tag")
	assert.Contains(t, result.Matches[0].Explanation, "semantic similarity")
}
