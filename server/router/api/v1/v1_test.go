package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptattershall/pjais/internal/profile"
	"github.com/ptattershall/pjais/memory"
	"github.com/ptattershall/pjais/store"
	"github.com/ptattershall/pjais/store/teststore"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	s := teststore.New()
	manager := memory.NewManager(s, nil, memory.DefaultConfig())
	t.Cleanup(func() {
		_ = manager.Close()
		_ = s.Close()
	})

	e := echo.New()
	NewAPIV1Service(&profile.Profile{Mode: "dev", Driver: "memory", Version: "test"}, s, manager).Register(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createMemory(t *testing.T, e *echo.Echo, personaID, content string) *store.Memory {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/api/v1/personas/"+personaID+"/memories",
		fmt.Sprintf(`{"content": %q}`, content))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	m := &store.Memory{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), m))
	return m
}

func TestCreateAndRetrieveMemory(t *testing.T) {
	e := newTestServer(t)

	created := createMemory(t, e, "persona-1", "remember this")
	assert.Equal(t, store.TierWarm, created.Tier)

	rec := doJSON(e, http.MethodGet, "/api/v1/personas/persona-1/memories/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := &store.Memory{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 1, got.AccessCount, "retrieval records the access")
}

func TestCreateRejectsEmptyContent(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/personas/persona-1/memories", `{"tags": ["only"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])
}

func TestRetrieveMissingMemory(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/personas/persona-1/memories/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersonaIsolation(t *testing.T) {
	e := newTestServer(t)

	created := createMemory(t, e, "persona-1", "private")

	rec := doJSON(e, http.MethodGet, "/api/v1/personas/persona-2/memories/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "foreign memories look missing")
}

func TestDeleteCascadesRelationships(t *testing.T) {
	e := newTestServer(t)

	a := createMemory(t, e, "persona-1", "memory a")
	b := createMemory(t, e, "persona-1", "memory b")

	rec := doJSON(e, http.MethodPost, "/api/v1/personas/persona-1/relationships",
		fmt.Sprintf(`{"from_id": %q, "to_id": %q, "type": "similar", "strength": 0.8, "confidence": 0.9}`, a.ID, b.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(e, http.MethodDelete, "/api/v1/personas/persona-1/memories/"+a.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/personas/persona-1/memories/"+b.ID+"/relationships", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Relationships []*store.Relationship `json:"relationships"`
		Total         int                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Empty(t, listing.Relationships)
	assert.Zero(t, listing.Total)
}

func TestRelationshipRouteBindsPersona(t *testing.T) {
	e := newTestServer(t)

	mine := createMemory(t, e, "persona-1", "mine")
	theirs := createMemory(t, e, "persona-2", "theirs")

	// The edge is scoped by the route's persona, so a cross-persona link is
	// rejected even when both ids exist.
	rec := doJSON(e, http.MethodPost, "/api/v1/personas/persona-1/relationships",
		fmt.Sprintf(`{"from_id": %q, "to_id": %q, "type": "similar", "strength": 0.5, "confidence": 0.5}`, mine.ID, theirs.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	other := createMemory(t, e, "persona-1", "also mine")
	rec = doJSON(e, http.MethodPost, "/api/v1/personas/persona-1/relationships",
		fmt.Sprintf(`{"from_id": %q, "to_id": %q, "type": "similar", "strength": 0.5, "confidence": 0.5}`, mine.ID, other.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	edge := &store.Relationship{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), edge))

	// A foreign persona cannot reinforce the edge, and deleting it reports
	// nothing to delete.
	rec = doJSON(e, http.MethodPatch, "/api/v1/personas/persona-2/relationships/"+edge.ID, `{"strength": 0.9}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(e, http.MethodDelete, "/api/v1/personas/persona-2/relationships/"+edge.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body["deleted"])
}

func TestBatchCreatePartialFailure(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/personas/persona-1/memories/batch",
		`{"memories": [{"content": "good"}, {"content": ""}]}`)
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	var result memory.BatchResult[*store.Memory]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}

func TestSearchMemoriesByKeyword(t *testing.T) {
	e := newTestServer(t)

	createMemory(t, e, "persona-1", "the salmon recipe")
	createMemory(t, e, "persona-1", "tax paperwork")

	rec := doJSON(e, http.MethodGet, "/api/v1/personas/persona-1/memories?q=salmon", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []*store.Memory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "the salmon recipe", list[0].Content)
}

func TestSemanticSearchWithoutProvider(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/personas/persona-1/search/semantic", `{"query": "anything"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromoteAndTierMetrics(t *testing.T) {
	e := newTestServer(t)

	created := createMemory(t, e, "persona-1", "important")

	rec := doJSON(e, http.MethodPost, "/api/v1/personas/persona-1/memories/"+created.ID+"/promote", `{"tier": "hot"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	promoted := &store.Memory{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), promoted))
	assert.Equal(t, store.TierHot, promoted.Tier)

	rec = doJSON(e, http.MethodGet, "/api/v1/personas/persona-1/tiers/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	metrics := &memory.TierMetrics{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), metrics))
	assert.Equal(t, 1, metrics.Counts[store.TierHot])
	assert.Equal(t, 1, metrics.Total)
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	health := &memory.HealthStatus{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), health))
	assert.Equal(t, "ok", health.Status)
}

func TestPersonaRateLimit(t *testing.T) {
	e := newTestServer(t)

	// The per-persona limiter bursts at 20; a tight loop past that must be
	// rejected while other personas stay unaffected.
	limited := false
	for i := 0; i < 40; i++ {
		rec := doJSON(e, http.MethodGet, "/api/v1/personas/persona-1/tiers/metrics", "")
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected the burst to exhaust the limiter")

	rec := doJSON(e, http.MethodGet, "/api/v1/personas/persona-2/tiers/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
