package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ptattershall/pjais/memory"
	"github.com/ptattershall/pjais/memory/search"
	"github.com/ptattershall/pjais/store"
)

// SearchMemories performs keyword search over live memories.
// GET /api/v1/personas/:personaId/memories?q=...&tier=...&limit=...&offset=...
func (s *APIV1Service) SearchMemories(c echo.Context) error {
	req := &memory.SearchRequest{
		PersonaID: c.Param("personaId"),
		Query:     c.QueryParam("q"),
		Limit:     queryInt(c, "limit"),
		Offset:    queryInt(c, "offset"),
	}
	if raw := c.QueryParam("tier"); raw != "" {
		t := store.Tier(raw)
		if !t.Valid() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tier"})
		}
		req.Tier = &t
	}

	list, err := s.Manager.Search(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"memories": list, "total": len(list)})
}

type semanticSearchRequest struct {
	Query     string  `json:"query"`
	Threshold float64 `json:"threshold,omitempty"`
	Limit     int     `json:"limit,omitempty"`
}

// SemanticSearch ranks memories against a query by embedding similarity.
// POST /api/v1/personas/:personaId/search/semantic
func (s *APIV1Service) SemanticSearch(c echo.Context) error {
	req := &semanticSearchRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	result, err := s.Manager.SemanticSearch(c.Request().Context(), c.Param("personaId"), req.Query, search.Options{
		Threshold: req.Threshold,
		Limit:     req.Limit,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type enhancedSearchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// EnhancedSearch combines semantic and keyword retrieval.
// POST /api/v1/personas/:personaId/search/enhanced
func (s *APIV1Service) EnhancedSearch(c echo.Context) error {
	req := &enhancedSearchRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	result, err := s.Manager.EnhancedSearch(c.Request().Context(), &memory.SearchRequest{
		PersonaID: c.Param("personaId"),
		Query:     req.Query,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// FindSimilar ranks memories against an existing record.
// GET /api/v1/personas/:personaId/memories/:memoryId/similar?threshold=...&limit=...
func (s *APIV1Service) FindSimilar(c echo.Context) error {
	opts := search.Options{Limit: queryInt(c, "limit")}
	if raw := c.QueryParam("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid threshold"})
		}
		opts.Threshold = threshold
	}

	result, err := s.Manager.FindSimilar(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"), opts)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
