// Package embedding implements the background runner that backfills vector
// embeddings for memories that do not have one yet: records whose
// fire-and-forget embedding failed at write time, or records created while
// the provider was down.
package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/ptattershall/pjais/memory/embed"
	"github.com/ptattershall/pjais/store"
)

type Runner struct {
	store     *store.Store
	service   embed.Service
	interval  time.Duration
	batchSize int
}

// NewRunner creates an embedding backfill runner. Small batches keep memory
// peaks low; the interval keeps provider load off the request path.
func NewRunner(s *store.Store, service embed.Service) *Runner {
	return &Runner{
		store:     s,
		service:   service,
		interval:  2 * time.Minute,
		batchSize: 8,
	}
}

// Run starts the background loop. It processes once on startup, then on
// every tick until the context is canceled.
func (r *Runner) Run(ctx context.Context) {
	r.process(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.process(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce processes pending memories once, for manual triggering.
func (r *Runner) RunOnce(ctx context.Context) {
	r.process(ctx)
}

func (r *Runner) process(ctx context.Context) {
	// Fetch more than one batch worth, but embed in small batches.
	memories, err := r.store.FindMemoriesWithoutEmbedding(ctx, r.service.Model(), r.batchSize*20)
	if err != nil {
		slog.Error("failed to find memories without embedding", "error", err)
		return
	}
	if len(memories) == 0 {
		return
	}

	slog.Info("backfilling memory embeddings", "count", len(memories))

	for i := 0; i < len(memories); i += r.batchSize {
		if ctx.Err() != nil {
			slog.Info("embedding backfill canceled", "processed", i, "total", len(memories))
			return
		}

		end := i + r.batchSize
		if end > len(memories) {
			end = len(memories)
		}
		if err := r.processBatch(ctx, memories[i:end]); err != nil {
			slog.Error("failed to process embedding batch", "error", err)
			continue
		}
	}
}

func (r *Runner) processBatch(ctx context.Context, memories []*store.Memory) error {
	texts := make([]string, len(memories))
	for i, m := range memories {
		texts[i] = m.Content
	}

	vectors, err := r.service.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	for i, m := range memories {
		if i >= len(vectors) {
			break
		}
		if _, err := r.store.UpsertMemoryEmbedding(ctx, &store.MemoryEmbedding{
			MemoryID:  m.ID,
			Embedding: vectors[i],
			Model:     r.service.Model(),
			CreatedTs: now,
			UpdatedTs: now,
		}); err != nil {
			slog.Error("failed to upsert embedding", "memory_id", m.ID, "error", err)
		}
	}
	return nil
}
