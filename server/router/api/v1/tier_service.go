package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ptattershall/pjais/store"
)

type tierMoveRequest struct {
	Tier store.Tier `json:"tier"`
}

// PromoteMemory moves a memory to a higher tier by operator decision.
// POST /api/v1/personas/:personaId/memories/:memoryId/promote
func (s *APIV1Service) PromoteMemory(c echo.Context) error {
	req := &tierMoveRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	updated, err := s.Manager.Promote(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"), req.Tier)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DemoteMemory moves a memory to a lower tier by operator decision.
// POST /api/v1/personas/:personaId/memories/:memoryId/demote
func (s *APIV1Service) DemoteMemory(c echo.Context) error {
	req := &tierMoveRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	updated, err := s.Manager.Demote(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"), req.Tier)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// OptimizeTiers runs one scored tier sweep over the persona's memories.
// POST /api/v1/personas/:personaId/tiers/optimize
func (s *APIV1Service) OptimizeTiers(c echo.Context) error {
	result, err := s.Manager.OptimizeTiers(c.Request().Context(), c.Param("personaId"))
	if err != nil && result == nil {
		return errorJSON(c, err)
	}
	// A canceled sweep still reports the partial result.
	status := http.StatusOK
	if err != nil {
		status = http.StatusAccepted
	}
	return c.JSON(status, result)
}

// GetMemoryScore returns a memory's score and tier recommendation.
// GET /api/v1/personas/:personaId/memories/:memoryId/score
func (s *APIV1Service) GetMemoryScore(c echo.Context) error {
	decision, err := s.Manager.GetScore(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"score":       decision.Score,
		"recommended": decision.Recommended,
		"target":      decision.Target,
		"should_move": decision.ShouldMove,
	})
}

// GetTierMetrics reports tier occupancy against the configured capacities.
// GET /api/v1/personas/:personaId/tiers/metrics
func (s *APIV1Service) GetTierMetrics(c echo.Context) error {
	metrics, err := s.Manager.GetTierMetrics(c.Request().Context(), c.Param("personaId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, metrics)
}

// GetTierAudit lists a memory's tier transition history.
// GET /api/v1/personas/:personaId/memories/:memoryId/audit
func (s *APIV1Service) GetTierAudit(c echo.Context) error {
	memoryID := c.Param("memoryId")
	audits, err := s.Store.ListTierAudits(c.Request().Context(), &store.FindTierAudit{MemoryID: &memoryID})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"audits": audits})
}

// GenerateEmbedding synchronously generates a memory's embedding.
// POST /api/v1/personas/:personaId/memories/:memoryId/embedding
func (s *APIV1Service) GenerateEmbedding(c echo.Context) error {
	if err := s.Manager.GenerateEmbedding(c.Request().Context(), c.Param("personaId"), c.Param("memoryId")); err != nil {
		return errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
