package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/api/middleware"
	"github.com/repohandler/repohandler/internal/api/response"
	"github.com/repohandler/repohandler/internal/blobstore"
)

// BlobOpener reads blobs back out of the in-process blob store.
type BlobOpener interface {
	Open(ctx context.Context, name string) ([]byte, string, error)
}

// MockStorageHandler serves the URLs handed out by the in-memory blob store.
type MockStorageHandler struct {
	blobs  BlobOpener
	logger *zap.Logger
}

// NewMockStorageHandler creates a new MockStorageHandler.
func NewMockStorageHandler(blobs BlobOpener, logger *zap.Logger) *MockStorageHandler {
	return &MockStorageHandler{blobs: blobs, logger: logger}
}

// ServeHTTP handles GET /mock-storage/*.
func (h *MockStorageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data, contentType, err := h.blobs.Open(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "File not found", requestID)
			return
		}
		h.logger.Error("failed to open blob", zap.Error(err), zap.String("requestId", requestID))
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read file", requestID)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
