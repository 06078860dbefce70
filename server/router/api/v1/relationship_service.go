package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ptattershall/pjais/memory"
	"github.com/ptattershall/pjais/memory/graph"
	"github.com/ptattershall/pjais/store"
)

// CreateRelationship links two memories with a typed, weighted edge.
// POST /api/v1/personas/:personaId/relationships
func (s *APIV1Service) CreateRelationship(c echo.Context) error {
	req := &memory.CreateRelationshipRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	req.PersonaID = c.Param("personaId")

	created, err := s.Manager.CreateRelationship(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

type updateStrengthRequest struct {
	Strength   float64  `json:"strength"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// UpdateRelationshipStrength reinforces or weakens an edge.
// PATCH /api/v1/personas/:personaId/relationships/:relationshipId
func (s *APIV1Service) UpdateRelationshipStrength(c echo.Context) error {
	req := &updateStrengthRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	updated, err := s.Manager.UpdateRelationshipStrength(c.Request().Context(), c.Param("personaId"), c.Param("relationshipId"), req.Strength, req.Confidence)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteRelationship removes an edge; deleting an absent edge succeeds.
// DELETE /api/v1/personas/:personaId/relationships/:relationshipId
func (s *APIV1Service) DeleteRelationship(c echo.Context) error {
	deleted, err := s.Manager.DeleteRelationship(c.Request().Context(), c.Param("personaId"), c.Param("relationshipId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": deleted})
}

// ListRelationships lists a memory's incident edges in both directions.
// GET /api/v1/personas/:personaId/memories/:memoryId/relationships
func (s *APIV1Service) ListRelationships(c echo.Context) error {
	list, err := s.Manager.ListRelationships(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"relationships": list, "total": len(list)})
}

// GetRelated walks the graph breadth-first from a memory.
// GET /api/v1/personas/:personaId/memories/:memoryId/related
//
// Query parameters: depth, min_strength, types (comma-separated),
// include_decayed, sort_by.
func (s *APIV1Service) GetRelated(c echo.Context) error {
	opts := graph.RelatedOptions{
		MaxDepth: queryInt(c, "depth"),
		SortBy:   graph.SortKey(c.QueryParam("sort_by")),
	}
	if raw := c.QueryParam("min_strength"); raw != "" {
		minStrength, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid min_strength"})
		}
		opts.MinStrength = minStrength
	}
	if raw := c.QueryParam("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			opts.Types = append(opts.Types, store.RelationshipType(strings.TrimSpace(t)))
		}
	}
	opts.IncludeDecayed = c.QueryParam("include_decayed") == "true"

	related, err := s.Manager.GetRelated(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"), opts)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"related": related, "total": len(related)})
}

// FindPath returns a shortest path between two memories.
// GET /api/v1/personas/:personaId/relationships/path?from=...&to=...
func (s *APIV1Service) FindPath(c echo.Context) error {
	fromID, toID := c.QueryParam("from"), c.QueryParam("to")
	if fromID == "" || toID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "from and to are required"})
	}

	path, err := s.Manager.FindPath(c.Request().Context(), c.Param("personaId"), fromID, toID)
	if err != nil {
		return errorJSON(c, err)
	}
	if path == nil {
		return c.JSON(http.StatusOK, map[string]any{"found": false})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"found":    true,
		"edges":    path.Edges,
		"hops":     path.Hops(),
		"reversed": path.Reversed,
	})
}

// DecayRelationships runs one decay pass over the persona's graph.
// POST /api/v1/personas/:personaId/relationships/decay
func (s *APIV1Service) DecayRelationships(c echo.Context) error {
	result, err := s.Manager.DecayRelationships(c.Request().Context(), c.Param("personaId"))
	if err != nil && result == nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// DiscoverRelationships proposes candidate edges without mutating the graph.
// GET /api/v1/personas/:personaId/memories/:memoryId/discover
func (s *APIV1Service) DiscoverRelationships(c echo.Context) error {
	proposals, err := s.Manager.DiscoverRelationships(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"proposals": proposals, "total": len(proposals)})
}

// AutoCreateRelationships applies high-confidence discovered edges.
// POST /api/v1/personas/:personaId/memories/:memoryId/relationships/auto
func (s *APIV1Service) AutoCreateRelationships(c echo.Context) error {
	created, err := s.Manager.AutoCreateRelationships(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"created": created, "total": len(created)})
}

// GraphAnalytics aggregates structural statistics over the persona's graph.
// GET /api/v1/personas/:personaId/relationships/analytics
func (s *APIV1Service) GraphAnalytics(c echo.Context) error {
	analytics, err := s.Manager.GraphAnalytics(c.Request().Context(), c.Param("personaId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, analytics)
}
