package handler_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/straye-as/solar-crm-api/internal/http/handler"
	"github.com/straye-as/solar-crm-api/internal/storage"
	"github.com/straye-as/solar-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler(t *testing.T) {
	h := setupHandlers(t)

	rr := httptest.NewRecorder()
	h.health.Live(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.health.Database(rr, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.health.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var checks map[string]string
	decodeBody(t, rr, &checks)
	assert.Equal(t, "ok", checks["storage"])
}

func TestHealthHandler_ReadyStorageDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dir := t.TempDir() + "/blobs"
	fileStorage, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	h := handler.NewHealthHandler(db, fileStorage, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var checks map[string]string
	decodeBody(t, rr, &checks)
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "unavailable", checks["storage"])
}
