package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/api/handler"
	"github.com/repohandler/repohandler/internal/blobstore"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

func TestHealthHandler_Healthy(t *testing.T) {
	// Arrange
	h := handler.NewHealthHandler(&mockPinger{}, "memory", "1.2.3")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	// Act
	h.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"1.2.3","store":{"backend":"memory","connected":true}}`, w.Body.String())
}

func TestHealthHandler_Degraded(t *testing.T) {
	h := handler.NewHealthHandler(&mockPinger{err: errors.New("connection refused")}, "postgres", "dev")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := parseEnvelope(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["store"].(map[string]interface{})["connected"])
}

func TestRoot(t *testing.T) {
	w := httptest.NewRecorder()

	handler.Root(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.JSONEq(t, `{"message":"RepoHandler API","status":"running"}`, w.Body.String())
}

func TestMockStorageHandler(t *testing.T) {
	blobs := blobstore.NewMemoryStore("http://localhost:8000")
	obj, err := blobs.Upload(context.Background(), []byte("%PDF-1.4"), "a.pdf", "TEAM-1", "application/pdf")
	assert.NoError(t, err)
	h := handler.NewMockStorageHandler(blobs, zap.NewNop())

	req, w := makeChiRequest(http.MethodGet, "/mock-storage/"+obj.Name, nil, map[string]string{"*": obj.Name})
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	req, w = makeChiRequest(http.MethodGet, "/mock-storage/prompts/none.pdf", nil, map[string]string{"*": "prompts/none.pdf"})
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
