package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pjaiserrors "github.com/ptattershall/pjais/internal/errors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Hello World", "hello world"},
		{"strips punctuation", "hello, world!", "hello world"},
		{"collapses whitespace", "hello   \t\n world", "hello world"},
		{"trims edges", "  hello  ", "hello"},
		{"empty", "", ""},
		{"punctuation only", "!?.,;", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestContentHashStableAcrossFormatting(t *testing.T) {
	a := ContentHash(Normalize("Paris is the capital of France."))
	b := ContentHash(Normalize("paris is the  capital of france"))
	assert.Equal(t, a, b)

	c := ContentHash(Normalize("Paris is the capital of Germany."))
	assert.NotEqual(t, a, c)
}

func TestCacheEmbedMemoizes(t *testing.T) {
	mock := NewMock(32)
	cache := NewCache(mock, DefaultCacheConfig())

	first, err := cache.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	second, err := cache.Embed(context.Background(), "The quick  brown fox!")
	require.NoError(t, err)

	// The second call normalizes to the same key and must not re-embed.
	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.EmbedCalls)
	assert.Equal(t, 1, cache.Size())
}

func TestCacheEmbedRejectsEmpty(t *testing.T) {
	cache := NewCache(NewMock(32), DefaultCacheConfig())

	for _, input := range []string{"", "   ", "\t\n", "?!."} {
		_, err := cache.Embed(context.Background(), input)
		require.Error(t, err)
		assert.True(t, pjaiserrors.IsInvalidArgument(err))
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mock := NewMock(16)
	cache := NewCache(mock, CacheConfig{Capacity: 2})

	_, err := cache.Embed(context.Background(), "one")
	require.NoError(t, err)
	_, err = cache.Embed(context.Background(), "two")
	require.NoError(t, err)

	// Touch "one" so "two" becomes the eviction candidate.
	_, err = cache.Embed(context.Background(), "one")
	require.NoError(t, err)

	_, err = cache.Embed(context.Background(), "three")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Size())

	calls := mock.EmbedCalls
	_, err = cache.Embed(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, calls, mock.EmbedCalls, "one should still be cached")

	_, err = cache.Embed(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, calls+1, mock.EmbedCalls, "two should have been evicted")
}

func TestCacheDropIsSafe(t *testing.T) {
	mock := NewMock(16)
	cache := NewCache(mock, DefaultCacheConfig())

	vector, err := cache.Embed(context.Background(), "droppable")
	require.NoError(t, err)

	cache.Drop()
	assert.Equal(t, 0, cache.Size())

	// A miss after dropping recomputes the identical vector.
	again, err := cache.Embed(context.Background(), "droppable")
	require.NoError(t, err)
	assert.Equal(t, vector, again)
}

func TestCacheWrapsProviderFailure(t *testing.T) {
	mock := NewMock(16)
	mock.SetError("unreachable", errors.New("connection refused"))
	cache := NewCache(mock, DefaultCacheConfig())

	_, err := cache.Embed(context.Background(), "unreachable")
	require.Error(t, err)
	assert.Equal(t, pjaiserrors.ErrCodeDependencyFailure, pjaiserrors.CodeOf(err))
}
