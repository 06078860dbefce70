package embedding

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptattershall/pjais/memory/embed"
	"github.com/ptattershall/pjais/store"
	"github.com/ptattershall/pjais/store/teststore"
)

func seedUnembedded(t *testing.T, s *store.Store, n int) []*store.Memory {
	t.Helper()
	now := time.Now().Unix()
	memories := make([]*store.Memory, 0, n)
	for i := 0; i < n; i++ {
		m, err := s.CreateMemory(context.Background(), &store.Memory{
			ID:        fmt.Sprintf("mem-%03d", i),
			PersonaID: "persona-1",
			Content:   fmt.Sprintf("record %d", i),
			Tier:      store.TierWarm,
			CreatedTs: now,
			UpdatedTs: now,
		})
		require.NoError(t, err)
		memories = append(memories, m)
	}
	return memories
}

func TestRunOnceBackfillsMissingEmbeddings(t *testing.T) {
	s := teststore.New()
	defer s.Close()
	mock := embed.NewMock(8)
	runner := NewRunner(s, mock)
	ctx := context.Background()

	memories := seedUnembedded(t, s, 20)

	runner.RunOnce(ctx)

	for _, m := range memories {
		e, err := s.GetMemoryEmbedding(ctx, m.ID, mock.Model())
		require.NoError(t, err)
		require.NotNil(t, e, "memory %s", m.ID)
		assert.Len(t, e.Embedding, 8)
	}

	pending, err := s.FindMemoriesWithoutEmbedding(ctx, mock.Model(), 100)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunOnceSkipsAlreadyEmbedded(t *testing.T) {
	s := teststore.New()
	defer s.Close()
	mock := embed.NewMock(8)
	runner := NewRunner(s, mock)
	ctx := context.Background()

	memories := seedUnembedded(t, s, 3)
	runner.RunOnce(ctx)
	calls := mock.EmbedCalls
	require.Equal(t, len(memories), calls)

	// A second pass has nothing to do.
	runner.RunOnce(ctx)
	assert.Equal(t, calls, mock.EmbedCalls)
}

func TestRunOnceContinuesPastProviderFailure(t *testing.T) {
	s := teststore.New()
	defer s.Close()
	mock := embed.NewMock(8)
	runner := NewRunner(s, mock)
	runner.batchSize = 1
	ctx := context.Background()

	memories := seedUnembedded(t, s, 3)
	mock.SetError(memories[1].Content, fmt.Errorf("provider unavailable"))

	runner.RunOnce(ctx)

	embedded, err := s.GetMemoryEmbedding(ctx, memories[0].ID, mock.Model())
	require.NoError(t, err)
	assert.NotNil(t, embedded)

	// The failed record stays pending for the next pass.
	pending, err := s.FindMemoriesWithoutEmbedding(ctx, mock.Model(), 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, memories[1].ID, pending[0].ID)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := teststore.New()
	defer s.Close()
	runner := NewRunner(s, embed.NewMock(8))
	runner.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop on cancellation")
	}
}
