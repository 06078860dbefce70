package embed

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/ptattershall/pjais/internal/errors"
)

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	// Capacity is the maximum number of cached vectors (default: 2048).
	Capacity int
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Capacity: 2048}
}

// Cache memoizes embedding generation keyed by a hash of the normalized text.
// It is a pure performance aid: any miss recomputes through the underlying
// service, and a changed text always produces a different key, so the cache
// can never return a stale vector for changed content.
type Cache struct {
	service  Service
	capacity int

	mu    sync.Mutex
	items map[string]*cacheEntry
	order *list.List // front = most recently used

	group singleflight.Group
}

type cacheEntry struct {
	key     string
	vector  []float32
	element *list.Element
}

// NewCache creates an embedding cache over the given service.
func NewCache(service Service, cfg CacheConfig) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 2048
	}
	return &Cache{
		service:  service,
		capacity: cfg.Capacity,
		items:    make(map[string]*cacheEntry),
		order:    list.New(),
	}
}

// Embed returns the embedding for text, computing it at most once for
// concurrent identical requests. Empty or whitespace-only text is rejected.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, errors.InvalidArgument("cannot embed empty content")
	}
	key := ContentHash(normalized)

	if vector, ok := c.get(key); ok {
		return vector, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if vector, ok := c.get(key); ok {
			return vector, nil
		}
		vector, err := c.service.Embed(ctx, text)
		if err != nil {
			return nil, errors.DependencyFailure("embedding generation failed", err)
		}
		c.put(key, vector)
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Model returns the underlying service's model identifier.
func (c *Cache) Model() string {
	return c.service.Model()
}

// Dimensions returns the underlying service's vector dimension.
func (c *Cache) Dimensions() int {
	return c.service.Dimensions()
}

// Size returns the number of cached vectors.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Drop discards all cached vectors. Correctness never depends on the cache,
// so dropping is always safe.
func (c *Cache) Drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cacheEntry)
	c.order.Init()
}

func (c *Cache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(e.element)
	return e.vector, true
}

func (c *Cache) put(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.vector = vector
		c.order.MoveToFront(e.element)
		return
	}

	for len(c.items) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		old := oldest.Value.(*cacheEntry)
		c.order.Remove(oldest)
		delete(c.items, old.key)
	}

	e := &cacheEntry{key: key, vector: vector}
	e.element = c.order.PushFront(e)
	c.items[key] = e
}

// Normalize lower-cases text, strips punctuation and collapses whitespace.
// Two texts that normalize identically share one cache slot.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// stripped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// ContentHash returns the cache key for normalized text.
func ContentHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
