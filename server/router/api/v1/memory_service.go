package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ptattershall/pjais/memory"
)

// CreateMemory stores a new memory record.
// POST /api/v1/personas/:personaId/memories
func (s *APIV1Service) CreateMemory(c echo.Context) error {
	req := &memory.CreateMemoryRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	req.PersonaID = c.Param("personaId")

	created, err := s.Manager.Create(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// RetrieveMemory returns a memory and records the access.
// GET /api/v1/personas/:personaId/memories/:memoryId
func (s *APIV1Service) RetrieveMemory(c echo.Context) error {
	m, err := s.Manager.Retrieve(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// UpdateMemory applies a partial update.
// PATCH /api/v1/personas/:personaId/memories/:memoryId
func (s *APIV1Service) UpdateMemory(c echo.Context) error {
	req := &memory.UpdateMemoryRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	updated, err := s.Manager.Update(c.Request().Context(), c.Param("personaId"), c.Param("memoryId"), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteMemory soft-deletes a memory and removes its graph edges.
// DELETE /api/v1/personas/:personaId/memories/:memoryId
func (s *APIV1Service) DeleteMemory(c echo.Context) error {
	if err := s.Manager.Delete(c.Request().Context(), c.Param("personaId"), c.Param("memoryId")); err != nil {
		return errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type batchCreateRequest struct {
	Memories []*memory.CreateMemoryRequest `json:"memories"`
}

// BatchCreateMemories stores multiple memories with per-item outcomes.
// POST /api/v1/personas/:personaId/memories/batch
func (s *APIV1Service) BatchCreateMemories(c echo.Context) error {
	req := &batchCreateRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	personaID := c.Param("personaId")
	for _, item := range req.Memories {
		if item != nil {
			item.PersonaID = personaID
		}
	}

	result, err := s.Manager.BatchCreate(c.Request().Context(), req.Memories)
	if result == nil && err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(batchStatus(err), result)
}

type batchIDsRequest struct {
	MemoryIDs []string `json:"memory_ids"`
}

// BatchRetrieveMemories fetches multiple memories with per-item outcomes.
// POST /api/v1/personas/:personaId/memories/batch/get
func (s *APIV1Service) BatchRetrieveMemories(c echo.Context) error {
	req := &batchIDsRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	result, err := s.Manager.BatchRetrieve(c.Request().Context(), c.Param("personaId"), req.MemoryIDs)
	if result == nil && err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(batchStatus(err), result)
}

// BatchDeleteMemories soft-deletes multiple memories with per-item outcomes.
// POST /api/v1/personas/:personaId/memories/batch/delete
func (s *APIV1Service) BatchDeleteMemories(c echo.Context) error {
	req := &batchIDsRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	result, err := s.Manager.BatchDelete(c.Request().Context(), c.Param("personaId"), req.MemoryIDs)
	if result == nil && err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(batchStatus(err), result)
}

// batchStatus maps a batch outcome onto an HTTP status: 200 for full
// success, 207 when only some items failed.
func batchStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return http.StatusMultiStatus
}
