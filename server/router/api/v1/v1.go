// Package v1 exposes the memory engine over a JSON HTTP API. Handlers map
// one-to-one onto manager operations and hold no logic of their own.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/internal/profile"
	"github.com/ptattershall/pjais/memory"
	"github.com/ptattershall/pjais/server/middleware"
	"github.com/ptattershall/pjais/store"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Manager memory.Manager

	limiter *middleware.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, s *store.Store, manager memory.Manager) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Store:   s,
		Manager: manager,
		limiter: middleware.NewRateLimiter(),
	}
}

// Register binds all routes onto the echo server. Write endpoints are rate
// limited per persona.
func (s *APIV1Service) Register(e *echo.Echo) {
	api := e.Group("/api/v1")
	api.Use(echomw.CORS())

	api.GET("/health", s.GetHealth)
	api.GET("/profile", s.GetProfile)

	personas := api.Group("/personas/:personaId", s.personaRateLimit)

	personas.POST("/memories", s.CreateMemory)
	personas.POST("/memories/batch", s.BatchCreateMemories)
	personas.POST("/memories/batch/get", s.BatchRetrieveMemories)
	personas.POST("/memories/batch/delete", s.BatchDeleteMemories)
	personas.GET("/memories/:memoryId", s.RetrieveMemory)
	personas.PATCH("/memories/:memoryId", s.UpdateMemory)
	personas.DELETE("/memories/:memoryId", s.DeleteMemory)

	personas.GET("/memories", s.SearchMemories)
	personas.POST("/search/semantic", s.SemanticSearch)
	personas.POST("/search/enhanced", s.EnhancedSearch)
	personas.GET("/memories/:memoryId/similar", s.FindSimilar)

	personas.POST("/memories/:memoryId/promote", s.PromoteMemory)
	personas.POST("/memories/:memoryId/demote", s.DemoteMemory)
	personas.POST("/tiers/optimize", s.OptimizeTiers)
	personas.GET("/memories/:memoryId/score", s.GetMemoryScore)
	personas.GET("/tiers/metrics", s.GetTierMetrics)
	personas.GET("/memories/:memoryId/audit", s.GetTierAudit)

	personas.POST("/memories/:memoryId/embedding", s.GenerateEmbedding)

	personas.POST("/relationships", s.CreateRelationship)
	personas.PATCH("/relationships/:relationshipId", s.UpdateRelationshipStrength)
	personas.DELETE("/relationships/:relationshipId", s.DeleteRelationship)
	personas.GET("/memories/:memoryId/relationships", s.ListRelationships)
	personas.GET("/memories/:memoryId/related", s.GetRelated)
	personas.GET("/relationships/path", s.FindPath)
	personas.POST("/relationships/decay", s.DecayRelationships)
	personas.GET("/memories/:memoryId/discover", s.DiscoverRelationships)
	personas.POST("/memories/:memoryId/relationships/auto", s.AutoCreateRelationships)
	personas.GET("/relationships/analytics", s.GraphAnalytics)
}

// personaRateLimit applies the shared limiter keyed by persona id, so one
// noisy persona cannot starve the rest.
func (s *APIV1Service) personaRateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiter.Allow("persona/" + c.Param("personaId")) {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}
		return next(c)
	}
}

// errorJSON maps a service error onto an HTTP status and JSON body.
func errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeDependencyFailure:
		status = http.StatusBadGateway
	case errors.ErrCodeBatchPartialFailure:
		status = http.StatusMultiStatus
	case errors.ErrCodeContextCanceled:
		status = http.StatusRequestTimeout
	}
	return c.JSON(status, map[string]string{
		"code":  string(errors.CodeOf(err)),
		"error": err.Error(),
	})
}
