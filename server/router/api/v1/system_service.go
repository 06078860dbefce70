package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetHealth reports manager health: 200 for ok/degraded, 503 for error.
// GET /api/v1/health
func (s *APIV1Service) GetHealth(c echo.Context) error {
	health := s.Manager.Health(c.Request().Context())
	status := http.StatusOK
	if health.Status == "error" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, health)
}

// GetProfile returns the non-sensitive runtime profile.
// GET /api/v1/profile
func (s *APIV1Service) GetProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"mode":              s.Profile.Mode,
		"version":           s.Profile.Version,
		"driver":            s.Profile.Driver,
		"embedding_enabled": s.Profile.EmbeddingEnabled,
		"embedding_model":   s.Profile.EmbeddingModel,
	})
}
