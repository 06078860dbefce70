package db

import (
	"github.com/pkg/errors"

	"github.com/ptattershall/pjais/internal/profile"
	"github.com/ptattershall/pjais/store"
	"github.com/ptattershall/pjais/store/db/postgres"
	"github.com/ptattershall/pjais/store/db/sqlite"
)

// NewDBDriver creates a new db driver based on the profile.
// SQLite is the default for local single-persona deployments; PostgreSQL is
// the production choice and enables pgvector-backed similarity search.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s (only 'sqlite' and 'postgres' are supported)", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
