package store

import (
	"context"
	"time"

	"github.com/ptattershall/pjais/internal/profile"
	"github.com/ptattershall/pjais/store/cache"
)

// Store provides database access to all raw objects.
// The persisted rows are the source of truth; all in-memory structures built
// on top of them (adjacency indexes, caches) are rebuildable views.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// memoryCache caches memory rows by id. Invalidated on every write.
	memoryCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
	}

	return &Store{
		driver:      driver,
		profile:     profile,
		memoryCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate brings the database schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	s.memoryCache.Close()
	return s.driver.Close()
}
