package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the memory engine.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for the server
	Addr string
	// Port is the binding port for the server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where pjais stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of the engine
	Version string

	// Embedding configuration
	EmbeddingEnabled    bool   // PJAIS_EMBEDDING_ENABLED (default: false)
	EmbeddingProvider   string // PJAIS_EMBEDDING_PROVIDER (default: openai)
	EmbeddingModel      string // PJAIS_EMBEDDING_MODEL (default: text-embedding-3-small)
	EmbeddingDimensions int    // PJAIS_EMBEDDING_DIMENSIONS (default: 1536)
	EmbeddingAPIKey     string // PJAIS_EMBEDDING_API_KEY
	EmbeddingBaseURL    string // PJAIS_EMBEDDING_BASE_URL
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbeddingEnabled returns true if semantic features are enabled and an
// embedding provider is reachable.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingEnabled && (p.EmbeddingAPIKey != "" || p.EmbeddingBaseURL != "")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads embedding configuration from PJAIS_* environment variables.
func (p *Profile) FromEnv() {
	p.EmbeddingEnabled = strings.EqualFold(os.Getenv("PJAIS_EMBEDDING_ENABLED"), "true")
	p.EmbeddingProvider = getEnvOrDefault("PJAIS_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingModel = getEnvOrDefault("PJAIS_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingAPIKey = os.Getenv("PJAIS_EMBEDDING_API_KEY")
	p.EmbeddingBaseURL = os.Getenv("PJAIS_EMBEDDING_BASE_URL")

	if dims := os.Getenv("PJAIS_EMBEDDING_DIMENSIONS"); dims != "" {
		if n, err := strconv.Atoi(dims); err == nil && n > 0 {
			p.EmbeddingDimensions = n
		}
	}
	if p.EmbeddingDimensions <= 0 {
		p.EmbeddingDimensions = 1536
	}
}

// Validate normalizes and validates the profile.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Data == "" {
		p.Data = "."
	}
	absData, err := filepath.Abs(p.Data)
	if err != nil {
		return errors.Wrap(err, "failed to resolve data directory")
	}
	p.Data = absData
	if _, err := os.Stat(p.Data); err != nil {
		return errors.Wrapf(err, "unable to access data directory %s", p.Data)
	}

	switch p.Driver {
	case "sqlite", "":
		p.Driver = "sqlite"
		if p.DSN == "" {
			dbFile := fmt.Sprintf("pjais_%s.db", p.Mode)
			p.DSN = filepath.Join(p.Data, dbFile)
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for postgres driver")
		}
	default:
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}

	return nil
}
