package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", "v")
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestSetWithTTLExpires(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	c.SetWithTTL(ctx, "k", "v", 10*time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "entry past its TTL is gone on read")
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(Config{MaxItems: 2})
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	c.Set(ctx, "c", 3)

	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestDeletePrefix(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c.Set(ctx, fmt.Sprintf("memory/%d", i), i)
	}
	c.Set(ctx, "relationship/1", "r")

	removed := c.DeletePrefix(ctx, "memory/")
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, c.Size())
}

func TestOnEvictionCallback(t *testing.T) {
	var evicted []string
	c := New(Config{
		MaxItems:   1,
		OnEviction: func(key string, _ any) { evicted = append(evicted, key) },
	})
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	assert.Equal(t, []string{"a"}, evicted)
}

func TestClear(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Clear(ctx)
	assert.Equal(t, 0, c.Size())
}
