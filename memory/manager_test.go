package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/memory/embed"
	"github.com/ptattershall/pjais/memory/graph"
	"github.com/ptattershall/pjais/memory/search"
	"github.com/ptattershall/pjais/store"
	"github.com/ptattershall/pjais/store/teststore"
)

const persona = "persona-1"

func newTestManager(t *testing.T) (*MemoryManager, *embed.Mock) {
	t.Helper()
	mock := embed.NewMock(8)
	manager := NewManager(teststore.New(), embed.NewCache(mock, embed.DefaultCacheConfig()), DefaultConfig())
	t.Cleanup(func() { _ = manager.Close() })
	return manager, mock
}

func mustCreate(t *testing.T, m *MemoryManager, content string, tags ...string) *store.Memory {
	t.Helper()
	created, err := m.Create(context.Background(), &CreateMemoryRequest{
		PersonaID:  persona,
		Content:    content,
		Tags:       tags,
		Importance: 50,
	})
	require.NoError(t, err)
	return created
}

func TestCreateDefaultsToWarm(t *testing.T) {
	manager, _ := newTestManager(t)

	created := mustCreate(t, manager, "first memory")
	assert.Equal(t, store.TierWarm, created.Tier)
	assert.Equal(t, persona, created.PersonaID)
	assert.NotEmpty(t, created.ID)
	assert.Zero(t, created.AccessCount)
	assert.Zero(t, created.LastAccessedTs)
}

func TestCreateValidation(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, &CreateMemoryRequest{PersonaID: persona})
	assert.True(t, errors.IsInvalidArgument(err), "empty content")

	_, err = manager.Create(ctx, &CreateMemoryRequest{Content: "orphan"})
	assert.True(t, errors.IsInvalidArgument(err), "missing persona")

	_, err = manager.Create(ctx, &CreateMemoryRequest{PersonaID: persona, Content: "x", Tier: "lukewarm"})
	assert.True(t, errors.IsInvalidArgument(err), "invalid tier")

	created, err := manager.Create(ctx, &CreateMemoryRequest{PersonaID: persona, Content: "x", Importance: 300})
	require.NoError(t, err)
	assert.Equal(t, 100, created.Importance, "importance clamped")
}

func TestCreateEmbedsInBackground(t *testing.T) {
	manager, _ := newTestManager(t)

	created := mustCreate(t, manager, "embed me")
	// Close waits for the background embedding to land.
	require.NoError(t, manager.Close())

	embedding, err := manager.store.GetMemoryEmbedding(context.Background(), created.ID, "mock-embedder")
	require.NoError(t, err)
	require.NotNil(t, embedding)
	assert.Len(t, embedding.Embedding, 8)
}

func TestRetrieveBumpsAccessCount(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created := mustCreate(t, manager, "count my reads")

	first, err := manager.Retrieve(ctx, persona, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.AccessCount, "returned record carries the bumped count")
	assert.NotZero(t, first.LastAccessedTs)

	second, err := manager.Retrieve(ctx, persona, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.AccessCount)
}

func TestConcurrentRetrievesLoseNoAccessCounts(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created := mustCreate(t, manager, "contended record")

	const readers = 50
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := manager.Retrieve(ctx, persona, created.ID)
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	final, err := manager.Retrieve(ctx, persona, created.ID)
	require.NoError(t, err)
	assert.Equal(t, readers+1, final.AccessCount, "every retrieve must land exactly one increment")
}

func TestRetrieveUnknownAndForeign(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created := mustCreate(t, manager, "mine")

	_, err := manager.Retrieve(ctx, persona, "missing")
	assert.True(t, errors.IsNotFound(err))

	// Another persona's id must look identical to a missing one.
	_, err = manager.Retrieve(ctx, "persona-2", created.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created := mustCreate(t, manager, "original content", "old-tag")

	name := "renamed"
	importance := 90
	updated, err := manager.Update(ctx, persona, created.ID, &UpdateMemoryRequest{
		Name:       &name,
		Importance: &importance,
		Tags:       []string{"new-tag"},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 90, updated.Importance)
	assert.Equal(t, []string{"new-tag"}, updated.Tags)
	assert.Equal(t, "original content", updated.Content, "content untouched")

	empty := ""
	_, err = manager.Update(ctx, persona, created.ID, &UpdateMemoryRequest{Content: &empty})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestDeleteSoftDeletesAndCascades(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, manager, "memory a")
	b := mustCreate(t, manager, "memory b")

	_, err := manager.CreateRelationship(ctx, &CreateRelationshipRequest{
		PersonaID: persona,
		FromID:    a.ID, ToID: b.ID, Type: store.RelationshipSimilar, Strength: 0.8, Confidence: 0.9,
	})
	require.NoError(t, err)

	require.NoError(t, manager.Delete(ctx, persona, a.ID))

	// The record is soft-deleted, not gone.
	_, err = manager.Retrieve(ctx, persona, a.ID)
	assert.True(t, errors.IsNotFound(err))

	// No traversal from the surviving side may reference the deleted id.
	related, err := manager.GetRelated(ctx, persona, b.ID, graph.RelatedOptions{MaxDepth: 3})
	require.NoError(t, err)
	assert.Empty(t, related)

	edges, err := manager.ListRelationships(ctx, persona, b.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	// Deleting again reports NotFound.
	err = manager.Delete(ctx, persona, a.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestRelationshipsScopedToPersona(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, manager, "memory a")
	b := mustCreate(t, manager, "memory b")
	foreign, err := manager.Create(ctx, &CreateMemoryRequest{PersonaID: "persona-2", Content: "not yours"})
	require.NoError(t, err)

	_, err = manager.CreateRelationship(ctx, &CreateRelationshipRequest{
		FromID: a.ID, ToID: b.ID, Type: store.RelationshipSimilar, Strength: 0.5, Confidence: 0.5,
	})
	assert.True(t, errors.IsInvalidArgument(err), "persona id is required")

	// An edge may never cross a persona boundary, in either direction.
	_, err = manager.CreateRelationship(ctx, &CreateRelationshipRequest{
		PersonaID: persona,
		FromID:    a.ID, ToID: foreign.ID, Type: store.RelationshipSimilar, Strength: 0.5, Confidence: 0.5,
	})
	assert.True(t, errors.IsNotFound(err))
	_, err = manager.CreateRelationship(ctx, &CreateRelationshipRequest{
		PersonaID: "persona-2",
		FromID:    a.ID, ToID: b.ID, Type: store.RelationshipSimilar, Strength: 0.5, Confidence: 0.5,
	})
	assert.True(t, errors.IsNotFound(err))

	edge, err := manager.CreateRelationship(ctx, &CreateRelationshipRequest{
		PersonaID: persona,
		FromID:    a.ID, ToID: b.ID, Type: store.RelationshipSimilar, Strength: 0.5, Confidence: 0.5,
	})
	require.NoError(t, err)

	// Another persona sees the edge as absent everywhere.
	_, err = manager.UpdateRelationshipStrength(ctx, "persona-2", edge.ID, 0.9, nil)
	assert.True(t, errors.IsNotFound(err))

	deleted, err := manager.DeleteRelationship(ctx, "persona-2", edge.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = manager.ListRelationships(ctx, "persona-2", a.ID)
	assert.True(t, errors.IsNotFound(err))

	// The owner still can mutate it.
	updated, err := manager.UpdateRelationshipStrength(ctx, persona, edge.ID, 0.9, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, updated.Strength, 1e-9)

	deleted, err = manager.DeleteRelationship(ctx, persona, edge.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestPromoteDemoteManual(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created := mustCreate(t, manager, "tiered")

	promoted, err := manager.Promote(ctx, persona, created.ID, store.TierHot)
	require.NoError(t, err)
	assert.Equal(t, store.TierHot, promoted.Tier)

	// Direction is enforced.
	_, err = manager.Promote(ctx, persona, created.ID, store.TierCold)
	assert.True(t, errors.IsInvalidArgument(err))

	demoted, err := manager.Demote(ctx, persona, created.ID, store.TierCold)
	require.NoError(t, err)
	assert.Equal(t, store.TierCold, demoted.Tier)

	audits, err := manager.store.ListTierAudits(ctx, &store.FindTierAudit{MemoryID: &created.ID})
	require.NoError(t, err)
	require.Len(t, audits, 2)
	for _, audit := range audits {
		assert.Equal(t, "manual", audit.Reason)
	}
}

func TestPromoteToCurrentTierIsNoOp(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created := mustCreate(t, manager, "already warm")
	result, err := manager.Promote(ctx, persona, created.ID, store.TierWarm)
	require.NoError(t, err)
	assert.Equal(t, store.TierWarm, result.Tier)

	audits, err := manager.store.ListTierAudits(ctx, &store.FindTierAudit{MemoryID: &created.ID})
	require.NoError(t, err)
	assert.Empty(t, audits, "no audit row for a no-op move")
}

func TestGetScoreAndTierMetrics(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created := mustCreate(t, manager, "scored")
	decision, err := manager.GetScore(ctx, persona, created.ID)
	require.NoError(t, err)
	assert.Greater(t, decision.Score, 0.0)

	metrics, err := manager.GetTierMetrics(ctx, persona)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.Counts[store.TierWarm])
	assert.Equal(t, 1, metrics.Total)
	assert.Equal(t, 100, metrics.Capacities[store.TierHot])
	assert.Equal(t, 500, metrics.Capacities[store.TierWarm])
	assert.Equal(t, 0, metrics.Capacities[store.TierCold], "cold is unbounded")
	assert.InDelta(t, 1.0/500, metrics.Utilization[store.TierWarm], 1e-9)
}

func TestSemanticSearchRanking(t *testing.T) {
	manager, mock := newTestManager(t)
	ctx := context.Background()

	mock.SetVector("Paris is the capital of France", []float32{1, 0, 0, 0, 0, 0, 0, 0})
	mock.SetVector("The Eiffel Tower is in Paris", []float32{0.8, 0.6, 0, 0, 0, 0, 0, 0})
	mock.SetVector("Tokyo hosts the Shibuya crossing", []float32{0, 0, 1, 0, 0, 0, 0, 0})
	mock.SetVector("capital of France", []float32{1, 0, 0, 0, 0, 0, 0, 0})

	capital := mustCreate(t, manager, "Paris is the capital of France")
	tower := mustCreate(t, manager, "The Eiffel Tower is in Paris")
	tokyo := mustCreate(t, manager, "Tokyo hosts the Shibuya crossing")

	// Make embeddings deterministic for the assertion.
	for _, m := range []*store.Memory{capital, tower, tokyo} {
		require.NoError(t, manager.GenerateEmbedding(ctx, persona, m.ID))
	}

	result, err := manager.SemanticSearch(ctx, persona, "capital of France", search.Options{Threshold: 0.3, Limit: 10})
	require.NoError(t, err)

	require.Len(t, result.Matches, 2)
	assert.Equal(t, capital.ID, result.Matches[0].Memory.ID)
	assert.Equal(t, tower.ID, result.Matches[1].Memory.ID)
	assert.Greater(t, result.Matches[0].Similarity, result.Matches[1].Similarity)
}

func TestSemanticSearchWithoutProvider(t *testing.T) {
	manager := NewManager(teststore.New(), nil, DefaultConfig())
	t.Cleanup(func() { _ = manager.Close() })

	_, err := manager.SemanticSearch(context.Background(), persona, "anything", search.Options{})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestEnhancedSearchFallsBackToKeyword(t *testing.T) {
	manager := NewManager(teststore.New(), nil, DefaultConfig())
	t.Cleanup(func() { _ = manager.Close() })
	ctx := context.Background()

	_, err := manager.Create(ctx, &CreateMemoryRequest{PersonaID: persona, Content: "the salmon recipe"})
	require.NoError(t, err)
	_, err = manager.Create(ctx, &CreateMemoryRequest{PersonaID: persona, Content: "tax paperwork"})
	require.NoError(t, err)

	result, err := manager.EnhancedSearch(ctx, &SearchRequest{PersonaID: persona, Query: "salmon"})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "the salmon recipe", result.Matches[0].Memory.Content)
	assert.Equal(t, "keyword match", result.Matches[0].Explanation)
}

func TestFindSimilarMemories(t *testing.T) {
	manager, mock := newTestManager(t)
	ctx := context.Background()

	mock.SetVector("alpha topic", []float32{1, 0, 0, 0, 0, 0, 0, 0})
	mock.SetVector("alpha topic revisited", []float32{0.9, 0.1, 0, 0, 0, 0, 0, 0})

	a := mustCreate(t, manager, "alpha topic")
	b := mustCreate(t, manager, "alpha topic revisited")
	require.NoError(t, manager.GenerateEmbedding(ctx, persona, a.ID))
	require.NoError(t, manager.GenerateEmbedding(ctx, persona, b.ID))

	result, err := manager.FindSimilar(ctx, persona, a.ID, search.Options{Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, b.ID, result.Matches[0].Memory.ID, "target itself is excluded")
}

func TestBatchCreatePartialFailure(t *testing.T) {
	manager, _ := newTestManager(t)

	result, err := manager.BatchCreate(context.Background(), []*CreateMemoryRequest{
		{PersonaID: persona, Content: "good one"},
		{PersonaID: persona}, // no content
		{PersonaID: persona, Content: "another good one"},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBatchPartialFailure, errors.CodeOf(err))

	require.NotNil(t, result)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Outcomes, 3)
	assert.Empty(t, result.Outcomes[0].Err)
	assert.NotEmpty(t, result.Outcomes[1].Err)
	assert.NotNil(t, result.Outcomes[0].Value)
}

func TestBatchRetrieveAndDelete(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, manager, "a")
	b := mustCreate(t, manager, "b")

	retrieved, err := manager.BatchRetrieve(ctx, persona, []string{a.ID, "missing", b.ID})
	require.Error(t, err)
	assert.Equal(t, 2, retrieved.Succeeded)
	assert.Equal(t, 1, retrieved.Failed)

	deleted, err := manager.BatchDelete(ctx, persona, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted.Succeeded)

	// Everything already deleted: the batch fails as a whole and the error
	// code reflects the per-item failures.
	again, err := manager.BatchDelete(ctx, persona, []string{a.ID, b.ID})
	require.Error(t, err)
	assert.Equal(t, 0, again.Succeeded)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestBatchCreateAllInvalid(t *testing.T) {
	manager, _ := newTestManager(t)

	result, err := manager.BatchCreate(context.Background(), []*CreateMemoryRequest{
		{PersonaID: persona}, // no content
		{Content: "orphan"},  // no persona
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.CodeOf(err),
		"an all-invalid batch is the caller's fault, not a dependency failure")

	require.NotNil(t, result)
	assert.Equal(t, 2, result.Failed)
	for _, outcome := range result.Outcomes {
		assert.Equal(t, errors.ErrCodeInvalidArgument, outcome.Code)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	manager, _ := newTestManager(t)

	sub, err := manager.Subscribe(4)
	require.NoError(t, err)
	defer sub.Cancel()

	created := mustCreate(t, manager, "observable")

	select {
	case event := <-sub.C:
		assert.Equal(t, EventCreated, event.Type)
		assert.Equal(t, created.ID, event.MemoryID)
		assert.Equal(t, store.TierWarm, event.Tier)
	case <-time.After(time.Second):
		t.Fatal("expected a created event")
	}
}

func TestHealth(t *testing.T) {
	manager, _ := newTestManager(t)

	health := manager.Health(context.Background())
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Details["embeddings"])

	bare := NewManager(teststore.New(), nil, DefaultConfig())
	t.Cleanup(func() { _ = bare.Close() })
	health = bare.Health(context.Background())
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "disabled", health.Details["embeddings"])
}

func TestOptimizeTiersEndToEnd(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created := mustCreate(t, manager, "heavily used")
	importance := 95
	_, err := manager.Update(ctx, persona, created.ID, &UpdateMemoryRequest{Importance: &importance})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		_, err := manager.Retrieve(ctx, persona, created.ID)
		require.NoError(t, err)
	}

	result, err := manager.OptimizeTiers(ctx, persona)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Promoted)

	promoted, err := manager.Retrieve(ctx, persona, created.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TierHot, promoted.Tier)
}
