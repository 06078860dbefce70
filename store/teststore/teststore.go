// Package teststore provides an in-memory store driver for tests. It mirrors
// the SQL drivers' observable behavior (ordering, upsert semantics, soft
// delete filtering) without touching a database.
package teststore

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/ptattershall/pjais/internal/profile"
	"github.com/ptattershall/pjais/memory/embed"
	"github.com/ptattershall/pjais/store"
)

// Driver is an in-memory store.Driver.
type Driver struct {
	mu sync.Mutex

	memories      map[string]*store.Memory
	relationships map[string]*store.Relationship
	embeddings    map[string]*store.MemoryEmbedding // keyed memoryID/model
	audits        []*store.TierAudit
	nextAuditID   int64
}

var _ store.Driver = (*Driver)(nil)

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		memories:      make(map[string]*store.Memory),
		relationships: make(map[string]*store.Relationship),
		embeddings:    make(map[string]*store.MemoryEmbedding),
	}
}

// New creates a store backed by an in-memory driver.
func New() *store.Store {
	return store.New(NewDriver(), &profile.Profile{Mode: "dev", Driver: "memory"})
}

func (d *Driver) GetDB() *sql.DB { return nil }

func (d *Driver) Close() error { return nil }

func (d *Driver) IsInitialized(context.Context) (bool, error) { return true, nil }

func (d *Driver) Migrate(context.Context) error { return nil }

func (d *Driver) CreateMemory(_ context.Context, create *store.Memory) (*store.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := copyMemory(create)
	d.memories[m.ID] = m
	return copyMemory(m), nil
}

func (d *Driver) ListMemories(_ context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := []*store.Memory{}
	for _, m := range d.memories {
		if find.ID != nil && m.ID != *find.ID {
			continue
		}
		if find.PersonaID != nil && m.PersonaID != *find.PersonaID {
			continue
		}
		if find.Tier != nil && m.Tier != *find.Tier {
			continue
		}
		if find.ExcludeDeleted && m.Deleted() {
			continue
		}
		if find.ContentSearch != nil && !contentMatches(m, *find.ContentSearch) {
			continue
		}
		list = append(list, copyMemory(m))
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedTs != list[j].CreatedTs {
			return list[i].CreatedTs > list[j].CreatedTs
		}
		return list[i].ID < list[j].ID
	})

	if find.Offset > 0 {
		if find.Offset >= len(list) {
			return []*store.Memory{}, nil
		}
		list = list[find.Offset:]
	}
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func (d *Driver) UpdateMemory(_ context.Context, update *store.UpdateMemory) (*store.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.memories[update.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}

	if update.Content != nil {
		m.Content = *update.Content
	}
	if update.Type != nil {
		m.Type = *update.Type
	}
	if update.Name != nil {
		m.Name = *update.Name
	}
	if update.Summary != nil {
		m.Summary = *update.Summary
	}
	if update.Tags != nil {
		m.Tags = append([]string(nil), update.Tags...)
	}
	if update.Importance != nil {
		m.Importance = *update.Importance
	}
	if update.Tier != nil {
		m.Tier = *update.Tier
	}
	if update.EmbeddingModel != nil {
		m.EmbeddingModel = *update.EmbeddingModel
	}
	if update.AccessCount != nil {
		m.AccessCount = *update.AccessCount
	}
	if update.LastAccessedTs != nil {
		m.LastAccessedTs = *update.LastAccessedTs
	}
	if update.TierChangedTs != nil {
		m.TierChangedTs = *update.TierChangedTs
	}
	if update.UpdatedTs != nil {
		m.UpdatedTs = *update.UpdatedTs
	}
	if update.SetDeletedTs {
		m.DeletedTs = update.DeletedTs
	} else if update.DeletedTs != nil {
		m.DeletedTs = update.DeletedTs
	}
	return copyMemory(m), nil
}

func (d *Driver) DeleteMemory(_ context.Context, del *store.DeleteMemory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.memories, del.ID)
	return nil
}

func (d *Driver) UpsertRelationship(_ context.Context, upsert *store.Relationship) (*store.Relationship, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range d.relationships {
		if r.FromID == upsert.FromID && r.ToID == upsert.ToID && r.Type == upsert.Type {
			r.Strength = upsert.Strength
			r.Confidence = upsert.Confidence
			r.LastReinforcedTs = upsert.LastReinforcedTs
			return copyRelationship(r), nil
		}
	}
	r := copyRelationship(upsert)
	d.relationships[r.ID] = r
	return copyRelationship(r), nil
}

func (d *Driver) ListRelationships(_ context.Context, find *store.FindRelationship) ([]*store.Relationship, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := []*store.Relationship{}
	for _, r := range d.relationships {
		if find.ID != nil && r.ID != *find.ID {
			continue
		}
		if find.FromID != nil && r.FromID != *find.FromID {
			continue
		}
		if find.ToID != nil && r.ToID != *find.ToID {
			continue
		}
		if find.MemoryID != nil && r.FromID != *find.MemoryID && r.ToID != *find.MemoryID {
			continue
		}
		if find.Type != nil && r.Type != *find.Type {
			continue
		}
		list = append(list, copyRelationship(r))
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedTs != list[j].CreatedTs {
			return list[i].CreatedTs > list[j].CreatedTs
		}
		return list[i].ID < list[j].ID
	})
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func (d *Driver) UpdateRelationship(_ context.Context, update *store.UpdateRelationship) (*store.Relationship, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.relationships[update.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if update.Strength != nil {
		r.Strength = *update.Strength
	}
	if update.Confidence != nil {
		r.Confidence = *update.Confidence
	}
	if update.LastReinforcedTs != nil {
		r.LastReinforcedTs = *update.LastReinforcedTs
	}
	return copyRelationship(r), nil
}

func (d *Driver) DeleteRelationship(_ context.Context, del *store.DeleteRelationship) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.relationships[del.ID]; !ok {
		return false, nil
	}
	delete(d.relationships, del.ID)
	return true, nil
}

func (d *Driver) DeleteRelationshipsByMemory(_ context.Context, memoryID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, r := range d.relationships {
		if r.FromID == memoryID || r.ToID == memoryID {
			delete(d.relationships, id)
		}
	}
	return nil
}

func (d *Driver) UpsertMemoryEmbedding(_ context.Context, embedding *store.MemoryEmbedding) (*store.MemoryEmbedding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := copyEmbedding(embedding)
	d.embeddings[embedKey(e.MemoryID, e.Model)] = e
	return copyEmbedding(e), nil
}

func (d *Driver) ListMemoryEmbeddings(_ context.Context, find *store.FindMemoryEmbedding) ([]*store.MemoryEmbedding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := []*store.MemoryEmbedding{}
	for _, e := range d.embeddings {
		if find.MemoryID != nil && e.MemoryID != *find.MemoryID {
			continue
		}
		if find.Model != nil && e.Model != *find.Model {
			continue
		}
		if find.PersonaID != nil {
			m, ok := d.memories[e.MemoryID]
			if !ok || m.PersonaID != *find.PersonaID {
				continue
			}
		}
		list = append(list, copyEmbedding(e))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].MemoryID < list[j].MemoryID })
	return list, nil
}

func (d *Driver) DeleteMemoryEmbedding(_ context.Context, memoryID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, e := range d.embeddings {
		if e.MemoryID == memoryID {
			delete(d.embeddings, key)
		}
	}
	return nil
}

func (d *Driver) VectorSearch(_ context.Context, opts *store.VectorSearchOptions) ([]*store.MemoryWithScore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	results := []*store.MemoryWithScore{}
	for _, m := range d.memories {
		if m.PersonaID != opts.PersonaID || m.Deleted() {
			continue
		}
		e, ok := d.embeddings[embedKey(m.ID, opts.Model)]
		if !ok {
			continue
		}
		results = append(results, &store.MemoryWithScore{
			Memory: copyMemory(m),
			Score:  float32(embed.Cosine(opts.Vector, e.Embedding)),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (d *Driver) FindMemoriesWithoutEmbedding(_ context.Context, model string, limit int) ([]*store.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := []*store.Memory{}
	for _, m := range d.memories {
		if m.Deleted() {
			continue
		}
		if _, ok := d.embeddings[embedKey(m.ID, model)]; ok {
			continue
		}
		list = append(list, copyMemory(m))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedTs < list[j].CreatedTs })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (d *Driver) CreateTierAudit(_ context.Context, create *store.TierAudit) (*store.TierAudit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextAuditID++
	audit := *create
	audit.ID = d.nextAuditID
	d.audits = append(d.audits, &audit)
	result := audit
	return &result, nil
}

func (d *Driver) ListTierAudits(_ context.Context, find *store.FindTierAudit) ([]*store.TierAudit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := []*store.TierAudit{}
	for _, a := range d.audits {
		if find.MemoryID != nil && a.MemoryID != *find.MemoryID {
			continue
		}
		audit := *a
		list = append(list, &audit)
	}
	// Most recent first.
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func contentMatches(m *store.Memory, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(m.Content), needle) ||
		strings.Contains(strings.ToLower(m.Name), needle) ||
		strings.Contains(strings.ToLower(m.Summary), needle) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func copyMemory(m *store.Memory) *store.Memory {
	c := *m
	c.Tags = append([]string(nil), m.Tags...)
	if m.DeletedTs != nil {
		ts := *m.DeletedTs
		c.DeletedTs = &ts
	}
	return &c
}

func copyRelationship(r *store.Relationship) *store.Relationship {
	c := *r
	return &c
}

func copyEmbedding(e *store.MemoryEmbedding) *store.MemoryEmbedding {
	c := *e
	c.Embedding = append([]float32(nil), e.Embedding...)
	return &c
}

func embedKey(memoryID, model string) string {
	return memoryID + "/" + model
}
