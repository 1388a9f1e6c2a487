package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/di"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		DataDir: t.TempDir(),
		Port:    8010,
		DevMode: true,
		Host:    &config.HostConfig{Listen: "127.0.0.1:0"},
	}
	container, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close(zerolog.Nop()) })

	return New(Config{Log: zerolog.Nop(), Config: cfg, Container: container})
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "allocator", body["service"])
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response SystemStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, 2, response.Strategies)
	assert.Equal(t, 0, response.Allocators)
	assert.False(t, response.LuaHost)
	assert.False(t, response.RemoteHost)
	assert.GreaterOrEqual(t, response.RAMPercent, 0.0)
	assert.Positive(t, response.Goroutines)
}

func TestSystemHandlers_HandleDatabaseStats(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/database", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response DatabaseStatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Len(t, response.Databases, 1)
	assert.Equal(t, "allocators", response.Databases[0].Name)
}

func TestServer_AllocatorRoutes(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	body := bytes.NewBufferString(`{"name":"ew","strategy":"equal_weight"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/allocators", body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var info map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	id := info["id"].(string)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/allocators/"+id+"/predict",
		bytes.NewBufferString(`{"input":[[1,2,3],[4,5,6]]}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Shape []int `json:"shape"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []int{2, 3}, resp.Shape)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/strategies", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
