package memory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/memory/embed"
	"github.com/ptattershall/pjais/memory/graph"
	"github.com/ptattershall/pjais/memory/search"
	"github.com/ptattershall/pjais/memory/tier"
	"github.com/ptattershall/pjais/store"
)

// Config holds the manager's policy knobs.
type Config struct {
	Scorer tier.ScorerConfig
	Graph  graph.Config

	// HotCapacity and WarmCapacity are soft occupancy targets reported by
	// tier metrics. Cold is unbounded.
	HotCapacity  int
	WarmCapacity int

	// EmbedTimeout bounds a single background embedding generation.
	EmbedTimeout time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		Scorer:       tier.DefaultScorerConfig(),
		Graph:        graph.DefaultConfig(),
		HotCapacity:  100,
		WarmCapacity: 500,
		EmbedTimeout: 30 * time.Second,
	}
}

// MemoryManager is the concrete Manager over a store, an embedding cache and
// the relationship graph. Embeddings may be nil, which disables semantic
// features; everything else keeps working.
type MemoryManager struct {
	store      *store.Store
	embeddings *embed.Cache
	engine     *search.Engine
	scorer     *tier.Scorer
	optimizer  *tier.Optimizer
	graph      *graph.Service
	config     Config

	events *broadcaster

	// personaMu serializes writes per persona. Reads take no lock.
	mu        sync.Mutex
	personaMu map[string]*sync.Mutex

	// embedFailures counts consecutive background embedding failures since
	// the last success. Non-zero degrades health.
	embedFailures atomic.Int64

	wg sync.WaitGroup
}

var _ Manager = (*MemoryManager)(nil)

// NewManager creates a memory manager. embeddings may be nil to run without
// semantic retrieval.
func NewManager(s *store.Store, embeddings *embed.Cache, config Config) *MemoryManager {
	if config.HotCapacity <= 0 {
		config.HotCapacity = 100
	}
	if config.WarmCapacity <= 0 {
		config.WarmCapacity = 500
	}
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = 30 * time.Second
	}
	scorer := tier.NewScorer(config.Scorer)
	m := &MemoryManager{
		store:      s,
		embeddings: embeddings,
		scorer:     scorer,
		optimizer:  tier.NewOptimizer(s, scorer),
		graph:      graph.NewService(s, config.Graph),
		config:     config,
		events:     newBroadcaster(),
		personaMu:  make(map[string]*sync.Mutex),
	}
	if embeddings != nil {
		m.engine = search.NewEngine(embeddings)
	}
	return m
}

func (m *MemoryManager) personaLock(personaID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	mu, ok := m.personaMu[personaID]
	if !ok {
		mu = &sync.Mutex{}
		m.personaMu[personaID] = mu
	}
	return mu
}

// Create stores a new memory record. The record defaults to the warm tier
// and its embedding is generated in the background, off the write lock, so
// creation latency never depends on the embedding provider.
func (m *MemoryManager) Create(ctx context.Context, req *CreateMemoryRequest) (*store.Memory, error) {
	if req == nil || req.PersonaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	if req.Content == "" {
		return nil, errors.InvalidArgument("content is required")
	}
	t := req.Tier
	if t == "" {
		t = store.TierWarm
	}
	if !t.Valid() {
		return nil, errors.InvalidArgument("invalid tier %q", t)
	}

	now := time.Now().Unix()
	create := &store.Memory{
		ID:            uuid.NewString(),
		PersonaID:     req.PersonaID,
		Content:       req.Content,
		Type:          req.Type,
		Name:          req.Name,
		Summary:       req.Summary,
		Tags:          req.Tags,
		Importance:    clampImportance(req.Importance),
		Tier:          t,
		TierChangedTs: now,
		CreatedTs:     now,
		UpdatedTs:     now,
	}
	if m.embeddings != nil {
		create.EmbeddingModel = m.embeddings.Model()
	}

	mu := m.personaLock(req.PersonaID)
	mu.Lock()
	created, err := m.store.CreateMemory(ctx, create)
	mu.Unlock()
	if err != nil {
		return nil, errors.DependencyFailure("failed to create memory", err)
	}

	m.embedAsync(created.ID, created.Content)
	m.events.publish(Event{Type: EventCreated, PersonaID: created.PersonaID, MemoryID: created.ID, Tier: created.Tier})
	return created, nil
}

// Retrieve returns a live memory and records the access: the returned record
// already carries the bumped access count and timestamp. The counter bump is a
// read-modify-write, so the read runs under the persona lock too; concurrent
// retrieves must never lose increments, or tier scoring sees a wrong
// frequency.
func (m *MemoryManager) Retrieve(ctx context.Context, personaID, memoryID string) (*store.Memory, error) {
	mu := m.personaLock(personaID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := m.ownedMemory(ctx, personaID, memoryID)
	if err != nil {
		return nil, err
	}

	count := existing.AccessCount + 1
	now := time.Now().Unix()

	updated, err := m.store.UpdateMemory(ctx, &store.UpdateMemory{
		ID:             memoryID,
		AccessCount:    &count,
		LastAccessedTs: &now,
	})
	if err != nil {
		return nil, errors.DependencyFailure("failed to record memory access", err)
	}
	return updated, nil
}

// Update applies a partial update. A content change re-embeds the record in
// the background.
func (m *MemoryManager) Update(ctx context.Context, personaID, memoryID string, req *UpdateMemoryRequest) (*store.Memory, error) {
	if req == nil {
		return nil, errors.InvalidArgument("update request is required")
	}
	mu := m.personaLock(personaID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := m.ownedMemory(ctx, personaID, memoryID)
	if err != nil {
		return nil, err
	}
	if req.Content != nil && *req.Content == "" {
		return nil, errors.InvalidArgument("content cannot be emptied")
	}

	now := time.Now().Unix()
	update := &store.UpdateMemory{
		ID:        memoryID,
		Content:   req.Content,
		Type:      req.Type,
		Name:      req.Name,
		Summary:   req.Summary,
		Tags:      req.Tags,
		UpdatedTs: &now,
	}
	if req.Importance != nil {
		clamped := clampImportance(*req.Importance)
		update.Importance = &clamped
	}

	updated, err := m.store.UpdateMemory(ctx, update)
	if err != nil {
		return nil, errors.DependencyFailure("failed to update memory", err)
	}

	if req.Content != nil && *req.Content != existing.Content {
		m.embedAsync(updated.ID, updated.Content)
	}
	m.events.publish(Event{Type: EventUpdated, PersonaID: personaID, MemoryID: memoryID, Tier: updated.Tier})
	return updated, nil
}

// Delete soft-deletes a memory and removes its graph edges, so traversals
// never surface a deleted record on either endpoint. Deleting an already
// deleted memory returns NotFound.
func (m *MemoryManager) Delete(ctx context.Context, personaID, memoryID string) error {
	mu := m.personaLock(personaID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := m.ownedMemory(ctx, personaID, memoryID); err != nil {
		return err
	}

	now := time.Now().Unix()
	_, err := m.store.UpdateMemory(ctx, &store.UpdateMemory{
		ID:           memoryID,
		DeletedTs:    &now,
		SetDeletedTs: true,
		UpdatedTs:    &now,
	})
	if err != nil {
		return errors.DependencyFailure("failed to delete memory", err)
	}

	if err := m.graph.DeleteByMemory(ctx, memoryID); err != nil {
		return err
	}
	m.events.publish(Event{Type: EventDeleted, PersonaID: personaID, MemoryID: memoryID})
	return nil
}

// Search performs keyword search over live memories: case-insensitive
// matching against content, name, summary and tags.
func (m *MemoryManager) Search(ctx context.Context, req *SearchRequest) ([]*store.Memory, error) {
	if req == nil || req.PersonaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	find := &store.FindMemory{
		PersonaID:      &req.PersonaID,
		Tier:           req.Tier,
		ExcludeDeleted: true,
		Limit:          req.Limit,
		Offset:         req.Offset,
	}
	if req.Query != "" {
		find.ContentSearch = &req.Query
	}
	list, err := m.store.ListMemories(ctx, find)
	if err != nil {
		return nil, errors.DependencyFailure("failed to search memories", err)
	}
	return list, nil
}

// SemanticSearch ranks a persona's memories against a natural-language query
// by embedding similarity.
func (m *MemoryManager) SemanticSearch(ctx context.Context, personaID, query string, opts search.Options) (*search.Result, error) {
	if personaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	if m.engine == nil {
		return nil, errors.InvalidArgument("semantic search requires an embedding provider")
	}
	candidates, err := m.candidates(ctx, personaID)
	if err != nil {
		return nil, err
	}
	return m.engine.Search(ctx, query, candidates, opts)
}

// EnhancedSearch combines semantic and keyword retrieval: semantic matches
// rank first, keyword-only hits fill the remainder. Without an embedding
// provider it degrades to keyword-only results.
func (m *MemoryManager) EnhancedSearch(ctx context.Context, req *SearchRequest) (*search.Result, error) {
	if req == nil || req.PersonaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	keyword, err := m.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	var result *search.Result
	if m.engine != nil && req.Query != "" {
		result, err = m.SemanticSearch(ctx, req.PersonaID, req.Query, search.Options{Limit: limit})
		if err != nil {
			// Keyword results still answer the request when the embedding
			// provider is down.
			slog.Warn("semantic search failed, falling back to keyword results", "error", err)
			result = nil
		}
	}
	if result == nil {
		result = &search.Result{TotalCandidates: len(keyword)}
	}

	seen := make(map[string]bool, len(result.Matches))
	for _, match := range result.Matches {
		seen[match.Memory.ID] = true
	}
	for _, mem := range keyword {
		if len(result.Matches) >= limit {
			break
		}
		if seen[mem.ID] {
			continue
		}
		seen[mem.ID] = true
		result.Matches = append(result.Matches, search.Match{
			Memory:      mem,
			Rank:        len(result.Matches) + 1,
			Explanation: "keyword match",
		})
	}
	return result, nil
}

// FindSimilar ranks a persona's memories against an existing record.
func (m *MemoryManager) FindSimilar(ctx context.Context, personaID, memoryID string, opts search.Options) (*search.Result, error) {
	if m.engine == nil {
		return nil, errors.InvalidArgument("similarity search requires an embedding provider")
	}
	target, err := m.ownedMemory(ctx, personaID, memoryID)
	if err != nil {
		return nil, err
	}
	embedding, err := m.store.GetMemoryEmbedding(ctx, memoryID, m.embeddings.Model())
	if err != nil {
		return nil, errors.DependencyFailure("failed to load target embedding", err)
	}
	if embedding == nil {
		return nil, errors.InvalidArgument("memory %s has no embedding yet", memoryID)
	}
	candidates, err := m.candidates(ctx, personaID)
	if err != nil {
		return nil, err
	}
	return m.engine.FindSimilar(target, embedding.Embedding, candidates, opts), nil
}

// candidates assembles a persona's live memories paired with their vectors
// in two list queries, avoiding a per-memory embedding lookup.
func (m *MemoryManager) candidates(ctx context.Context, personaID string) ([]search.Candidate, error) {
	memories, err := m.store.ListMemories(ctx, &store.FindMemory{
		PersonaID:      &personaID,
		ExcludeDeleted: true,
	})
	if err != nil {
		return nil, errors.DependencyFailure("failed to list memories", err)
	}

	model := m.embeddings.Model()
	embeddings, err := m.store.ListMemoryEmbeddings(ctx, &store.FindMemoryEmbedding{
		PersonaID: &personaID,
		Model:     &model,
	})
	if err != nil {
		return nil, errors.DependencyFailure("failed to list embeddings", err)
	}
	vectors := make(map[string][]float32, len(embeddings))
	for _, e := range embeddings {
		vectors[e.MemoryID] = e.Embedding
	}

	candidates := make([]search.Candidate, 0, len(memories))
	for _, mem := range memories {
		candidates = append(candidates, search.Candidate{Memory: mem, Vector: vectors[mem.ID]})
	}
	return candidates, nil
}

// Promote moves a memory to a higher tier by operator decision, bypassing
// scoring and hysteresis. The transition is audited with reason "manual".
func (m *MemoryManager) Promote(ctx context.Context, personaID, memoryID string, target store.Tier) (*store.Memory, error) {
	return m.moveTier(ctx, personaID, memoryID, target, true)
}

// Demote moves a memory to a lower tier by operator decision.
func (m *MemoryManager) Demote(ctx context.Context, personaID, memoryID string, target store.Tier) (*store.Memory, error) {
	return m.moveTier(ctx, personaID, memoryID, target, false)
}

func (m *MemoryManager) moveTier(ctx context.Context, personaID, memoryID string, target store.Tier, up bool) (*store.Memory, error) {
	if !target.Valid() {
		return nil, errors.InvalidArgument("invalid tier %q", target)
	}

	mu := m.personaLock(personaID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := m.ownedMemory(ctx, personaID, memoryID)
	if err != nil {
		return nil, err
	}
	if existing.Tier == target {
		return existing, nil
	}
	if up && tierRank(target) < tierRank(existing.Tier) {
		return nil, errors.InvalidArgument("promote cannot move %s to lower tier %s", existing.Tier, target)
	}
	if !up && tierRank(target) > tierRank(existing.Tier) {
		return nil, errors.InvalidArgument("demote cannot move %s to higher tier %s", existing.Tier, target)
	}

	now := time.Now().Unix()
	updated, err := m.store.UpdateMemory(ctx, &store.UpdateMemory{
		ID:            memoryID,
		Tier:          &target,
		TierChangedTs: &now,
	})
	if err != nil {
		return nil, errors.DependencyFailure("failed to change tier", err)
	}

	if _, err := m.store.CreateTierAudit(ctx, &store.TierAudit{
		MemoryID: memoryID,
		FromTier: existing.Tier,
		ToTier:   target,
		Reason:   "manual",
	}); err != nil {
		slog.Warn("failed to record tier audit", "memory_id", memoryID, "error", err)
	}

	m.events.publish(Event{Type: EventTierChanged, PersonaID: personaID, MemoryID: memoryID, Tier: target})
	return updated, nil
}

// OptimizeTiers sweeps a persona's live memories once, applying scored tier
// transitions with hysteresis.
func (m *MemoryManager) OptimizeTiers(ctx context.Context, personaID string) (*tier.OptimizationResult, error) {
	if personaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	mu := m.personaLock(personaID)
	mu.Lock()
	result, err := m.optimizer.Run(ctx, personaID)
	mu.Unlock()
	if result != nil {
		for _, move := range result.Moves {
			m.events.publish(Event{Type: EventTierChanged, PersonaID: personaID, MemoryID: move.MemoryID, Tier: move.To})
		}
	}
	return result, err
}

// GetScore returns a memory's current score and tier recommendation without
// applying it.
func (m *MemoryManager) GetScore(ctx context.Context, personaID, memoryID string) (*tier.Decision, error) {
	existing, err := m.ownedMemory(ctx, personaID, memoryID)
	if err != nil {
		return nil, err
	}
	decision := m.scorer.Decide(existing)
	return &decision, nil
}

// GetTierMetrics reports per-tier occupancy against the configured soft
// capacities.
func (m *MemoryManager) GetTierMetrics(ctx context.Context, personaID string) (*TierMetrics, error) {
	if personaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	memories, err := m.store.ListMemories(ctx, &store.FindMemory{
		PersonaID:      &personaID,
		ExcludeDeleted: true,
	})
	if err != nil {
		return nil, errors.DependencyFailure("failed to list memories", err)
	}

	metrics := &TierMetrics{
		Counts: map[store.Tier]int{store.TierHot: 0, store.TierWarm: 0, store.TierCold: 0},
		Capacities: map[store.Tier]int{
			store.TierHot:  m.config.HotCapacity,
			store.TierWarm: m.config.WarmCapacity,
			store.TierCold: 0,
		},
		Utilization: map[store.Tier]float64{},
		Total:       len(memories),
	}
	for _, mem := range memories {
		metrics.Counts[mem.Tier]++
	}
	for t, capacity := range metrics.Capacities {
		if capacity > 0 {
			metrics.Utilization[t] = float64(metrics.Counts[t]) / float64(capacity)
		}
	}
	return metrics, nil
}

// GenerateEmbedding synchronously generates and stores a memory's embedding.
func (m *MemoryManager) GenerateEmbedding(ctx context.Context, personaID, memoryID string) error {
	if m.embeddings == nil {
		return errors.InvalidArgument("embedding provider is not configured")
	}
	existing, err := m.ownedMemory(ctx, personaID, memoryID)
	if err != nil {
		return err
	}
	return m.embedOnce(ctx, existing.ID, existing.Content)
}

// embedAsync schedules embedding generation in the background. Failures are
// logged and reflected in health, never surfaced to the write that caused
// them; the embedding runner retries unembedded records later.
func (m *MemoryManager) embedAsync(memoryID, content string) {
	if m.embeddings == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.config.EmbedTimeout)
		defer cancel()
		if err := m.embedOnce(ctx, memoryID, content); err != nil {
			slog.Warn("background embedding failed", "memory_id", memoryID, "error", err)
		}
	}()
}

func (m *MemoryManager) embedOnce(ctx context.Context, memoryID, content string) error {
	vector, err := m.embeddings.Embed(ctx, content)
	if err != nil {
		m.embedFailures.Add(1)
		return err
	}
	now := time.Now().Unix()
	if _, err := m.store.UpsertMemoryEmbedding(ctx, &store.MemoryEmbedding{
		MemoryID:  memoryID,
		Embedding: vector,
		Model:     m.embeddings.Model(),
		CreatedTs: now,
		UpdatedTs: now,
	}); err != nil {
		m.embedFailures.Add(1)
		return errors.DependencyFailure("failed to store embedding", err)
	}
	m.embedFailures.Store(0)
	return nil
}

// CreateRelationship links two memories of one persona. Both endpoints must
// belong to the requesting persona, and the mutation runs under the persona
// write lock like every other graph write.
func (m *MemoryManager) CreateRelationship(ctx context.Context, req *CreateRelationshipRequest) (*store.Relationship, error) {
	if req == nil || req.PersonaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}

	mu := m.personaLock(req.PersonaID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := m.ownedMemory(ctx, req.PersonaID, req.FromID); err != nil {
		return nil, err
	}
	if _, err := m.ownedMemory(ctx, req.PersonaID, req.ToID); err != nil {
		return nil, err
	}
	return m.graph.Create(ctx, req.FromID, req.ToID, req.Type, req.Strength, req.Confidence)
}

// UpdateRelationshipStrength reinforces or weakens an edge of the persona's
// graph. Serialized against decay runs so a reinforcement is never overwritten
// by a decayed value computed from a stale read.
func (m *MemoryManager) UpdateRelationshipStrength(ctx context.Context, personaID, id string, strength float64, confidence *float64) (*store.Relationship, error) {
	mu := m.personaLock(personaID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := m.ownedRelationship(ctx, personaID, id); err != nil {
		return nil, err
	}
	return m.graph.UpdateStrength(ctx, id, strength, confidence)
}

// DeleteRelationship removes an edge of the persona's graph. Absent edges are
// not an error, and a foreign persona's edge looks absent rather than leaking
// its existence.
func (m *MemoryManager) DeleteRelationship(ctx context.Context, personaID, id string) (bool, error) {
	mu := m.personaLock(personaID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := m.ownedRelationship(ctx, personaID, id); err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return m.graph.Delete(ctx, id)
}

// ListRelationships lists a memory's incident edges in both directions.
func (m *MemoryManager) ListRelationships(ctx context.Context, personaID, memoryID string) ([]*store.Relationship, error) {
	if _, err := m.ownedMemory(ctx, personaID, memoryID); err != nil {
		return nil, err
	}
	return m.graph.List(ctx, memoryID)
}

// GetRelated walks the graph breadth-first from a memory.
func (m *MemoryManager) GetRelated(ctx context.Context, personaID, memoryID string, opts graph.RelatedOptions) ([]*graph.RelatedMemory, error) {
	if _, err := m.ownedMemory(ctx, personaID, memoryID); err != nil {
		return nil, err
	}
	return m.graph.GetRelated(ctx, memoryID, opts)
}

// FindPath returns a shortest path between two memories, or nil when none
// exists.
func (m *MemoryManager) FindPath(ctx context.Context, personaID, fromID, toID string) (*graph.Path, error) {
	if _, err := m.ownedMemory(ctx, personaID, fromID); err != nil {
		return nil, err
	}
	if _, err := m.ownedMemory(ctx, personaID, toID); err != nil {
		return nil, err
	}
	return m.graph.FindPath(ctx, fromID, toID)
}

// DecayRelationships runs one decay pass over a persona's graph.
func (m *MemoryManager) DecayRelationships(ctx context.Context, personaID string) (*graph.DecayResult, error) {
	if personaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	mu := m.personaLock(personaID)
	mu.Lock()
	defer mu.Unlock()
	return m.graph.Decay(ctx, personaID)
}

// DiscoverRelationships proposes candidate edges without mutating the graph.
func (m *MemoryManager) DiscoverRelationships(ctx context.Context, personaID, memoryID string) ([]*graph.Proposal, error) {
	if _, err := m.ownedMemory(ctx, personaID, memoryID); err != nil {
		return nil, err
	}
	return m.graph.Discover(ctx, memoryID)
}

// AutoCreateRelationships applies high-confidence discovered edges. The
// applied edges are graph writes, so the pass holds the persona lock.
func (m *MemoryManager) AutoCreateRelationships(ctx context.Context, personaID, memoryID string) ([]*store.Relationship, error) {
	mu := m.personaLock(personaID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := m.ownedMemory(ctx, personaID, memoryID); err != nil {
		return nil, err
	}
	return m.graph.AutoCreate(ctx, memoryID)
}

// GraphAnalytics aggregates structural statistics over a persona's graph.
func (m *MemoryManager) GraphAnalytics(ctx context.Context, personaID string) (*graph.Analytics, error) {
	if personaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	return m.graph.ComputeAnalytics(ctx, personaID)
}

// Subscribe registers a change-notification listener.
func (m *MemoryManager) Subscribe(buffer int) (*Subscription, error) {
	return m.events.subscribe(buffer)
}

// Health reports the manager's condition: "error" when the store is
// unreachable, "degraded" when background embedding is failing, "ok"
// otherwise.
func (m *MemoryManager) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Status: "ok", Details: map[string]string{}}

	if _, err := m.store.ListMemories(ctx, &store.FindMemory{Limit: 1}); err != nil {
		status.Status = "error"
		status.Details["store"] = err.Error()
		return status
	}
	status.Details["store"] = "ok"

	if m.embeddings == nil {
		status.Details["embeddings"] = "disabled"
	} else if failures := m.embedFailures.Load(); failures > 0 {
		status.Status = "degraded"
		status.Details["embeddings"] = "failing"
	} else {
		status.Details["embeddings"] = "ok"
	}
	return status
}

// Close stops event delivery and waits for in-flight background embedding
// work. The store is owned by the caller and is not closed here.
func (m *MemoryManager) Close() error {
	m.events.close()
	m.wg.Wait()
	return nil
}

// ownedMemory fetches a live memory and verifies persona ownership. A
// missing, deleted or foreign record uniformly reports NotFound so persona
// boundaries leak nothing.
func (m *MemoryManager) ownedMemory(ctx context.Context, personaID, memoryID string) (*store.Memory, error) {
	if personaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	if memoryID == "" {
		return nil, errors.InvalidArgument("memory id is required")
	}
	existing, err := m.store.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, errors.DependencyFailure("failed to get memory", err)
	}
	if existing == nil || existing.Deleted() || existing.PersonaID != personaID {
		return nil, errors.NotFound("memory", memoryID)
	}
	return existing, nil
}

// ownedRelationship fetches an edge and verifies that its endpoints belong to
// the persona. Edges only ever link memories of one persona, so checking the
// from endpoint suffices. A missing or foreign edge uniformly reports
// NotFound.
func (m *MemoryManager) ownedRelationship(ctx context.Context, personaID, id string) (*store.Relationship, error) {
	if personaID == "" {
		return nil, errors.InvalidArgument("persona id is required")
	}
	if id == "" {
		return nil, errors.InvalidArgument("relationship id is required")
	}
	edge, err := m.graph.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := m.ownedMemory(ctx, personaID, edge.FromID); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound("relationship", id)
		}
		return nil, err
	}
	return edge, nil
}

func clampImportance(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func tierRank(t store.Tier) int {
	switch t {
	case store.TierHot:
		return 2
	case store.TierWarm:
		return 1
	default:
		return 0
	}
}
