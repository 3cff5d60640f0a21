package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/api/middleware"
	"github.com/repohandler/repohandler/internal/api/response"
	"github.com/repohandler/repohandler/internal/api/validation"
	"github.com/repohandler/repohandler/internal/blobstore"
	"github.com/repohandler/repohandler/internal/docstore"
	"github.com/repohandler/repohandler/internal/project"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body into dst and validates it. It writes the error
// response itself and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}

	if fieldErrors := validation.Struct(dst); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return false
	}
	return true
}

// writeServiceError maps project, review, store and blob errors to a response.
// Unknown errors are logged and reported as 500 with fallback as message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, fallback string) {
	requestID := middleware.GetRequestID(r.Context())

	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", requestID)
	case errors.Is(err, project.ErrNotAuthorized):
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Not authorized", requestID)
	case errors.Is(err, project.ErrTeamHasProject):
		response.Err(w, http.StatusBadRequest, "PROJECT_EXISTS", "Team already has a project. Use update instead.", requestID)
	case errors.Is(err, project.ErrUnsupportedMediaType):
		response.Err(w, http.StatusBadRequest, "UNSUPPORTED_MEDIA_TYPE", "Only PDF files are allowed", requestID)
	case errors.Is(err, project.ErrAttachmentSuperseded):
		response.Err(w, http.StatusConflict, "CONFLICT", "Another upload replaced this file. Retry the upload.", requestID)
	case errors.Is(err, docstore.ErrUnavailable), errors.Is(err, blobstore.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		logger.Warn("store unavailable", zap.Error(err), zap.String("requestId", requestID))
		response.Err(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Storage is temporarily unavailable", requestID)
	default:
		logger.Error(fallback, zap.Error(err), zap.String("requestId", requestID))
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback, requestID)
	}
}
