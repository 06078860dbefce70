package memory

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/store"
)

// batchConcurrency bounds the number of in-flight items per batch call.
const batchConcurrency = 8

// BatchOutcome is the per-item result of a batch operation. Exactly one of
// Value and Err is meaningful.
type BatchOutcome[T any] struct {
	Index int              `json:"index"`
	Value T                `json:"value,omitempty"`
	Err   string           `json:"error,omitempty"`
	Code  errors.ErrorCode `json:"code,omitempty"`
}

// BatchResult collects per-item outcomes. A batch never fails as a whole
// because one item failed; Err reports BATCH_PARTIAL_FAILURE when some but
// not all items failed.
type BatchResult[T any] struct {
	Outcomes  []BatchOutcome[T] `json:"outcomes"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// Err returns nil when every item succeeded and a partial-failure error when
// some failed. When every item failed the error carries the dominant per-item
// code, so a batch of all-invalid inputs reports INVALID_ARGUMENT rather than
// a dependency failure.
func (r *BatchResult[T]) Err() error {
	switch {
	case r.Failed == 0:
		return nil
	case r.Succeeded == 0:
		return &errors.MemoryError{Code: r.dominantCode(), Message: "all batch items failed"}
	default:
		return errors.BatchPartialFailure(r.Failed, r.Failed+r.Succeeded)
	}
}

// dominantCode returns the most frequent per-item error code. Ties resolve
// toward DEPENDENCY_FAILURE so callers never under-retry.
func (r *BatchResult[T]) dominantCode() errors.ErrorCode {
	counts := make(map[errors.ErrorCode]int)
	for _, outcome := range r.Outcomes {
		if outcome.Err != "" {
			counts[outcome.Code]++
		}
	}
	dominant := errors.ErrCodeDependencyFailure
	best := 0
	for _, code := range []errors.ErrorCode{
		errors.ErrCodeDependencyFailure,
		errors.ErrCodeInvalidArgument,
		errors.ErrCodeNotFound,
		errors.ErrCodeContextCanceled,
	} {
		if counts[code] > best {
			dominant, best = code, counts[code]
		}
	}
	return dominant
}

// runBatch executes fn per item with bounded concurrency, collecting
// per-item outcomes in input order.
func runBatch[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) (T, error)) *BatchResult[T] {
	result := &BatchResult[T]{Outcomes: make([]BatchOutcome[T], n)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			value, err := fn(ctx, i)
			mu.Lock()
			defer mu.Unlock()
			result.Outcomes[i] = BatchOutcome[T]{Index: i, Value: value}
			if err != nil {
				result.Outcomes[i].Err = err.Error()
				result.Outcomes[i].Code = errors.CodeOf(err)
				result.Failed++
			} else {
				result.Succeeded++
			}
			// Item failures never cancel the rest of the batch.
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// BatchCreate stores multiple memories, possibly across personas. Each item
// succeeds or fails independently.
func (m *MemoryManager) BatchCreate(ctx context.Context, reqs []*CreateMemoryRequest) (*BatchResult[*store.Memory], error) {
	if len(reqs) == 0 {
		return nil, errors.InvalidArgument("batch is empty")
	}
	result := runBatch(ctx, len(reqs), func(ctx context.Context, i int) (*store.Memory, error) {
		return m.Create(ctx, reqs[i])
	})
	return result, result.Err()
}

// BatchRetrieve fetches multiple memories of one persona, bumping each
// record's access count as a single retrieve would.
func (m *MemoryManager) BatchRetrieve(ctx context.Context, personaID string, memoryIDs []string) (*BatchResult[*store.Memory], error) {
	if len(memoryIDs) == 0 {
		return nil, errors.InvalidArgument("batch is empty")
	}
	result := runBatch(ctx, len(memoryIDs), func(ctx context.Context, i int) (*store.Memory, error) {
		return m.Retrieve(ctx, personaID, memoryIDs[i])
	})
	return result, result.Err()
}

// BatchDelete soft-deletes multiple memories of one persona. The outcome
// value is the memory id, set only on success.
func (m *MemoryManager) BatchDelete(ctx context.Context, personaID string, memoryIDs []string) (*BatchResult[string], error) {
	if len(memoryIDs) == 0 {
		return nil, errors.InvalidArgument("batch is empty")
	}
	result := runBatch(ctx, len(memoryIDs), func(ctx context.Context, i int) (string, error) {
		if err := m.Delete(ctx, personaID, memoryIDs[i]); err != nil {
			return "", err
		}
		return memoryIDs[i], nil
	})
	return result, result.Err()
}
