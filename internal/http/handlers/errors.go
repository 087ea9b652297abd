package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Longt00/company-sub000/internal/http/response"
	"github.com/Longt00/company-sub000/internal/services"
)

// respondServiceError maps the service failure taxonomy onto HTTP statuses.
// Range errors are handled at the call site because they need the
// Content-Range header.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidationFailed):
		response.RespondError(c, http.StatusBadRequest, "validation_failed", err)
	case errors.Is(err, services.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrStorageWrite):
		response.RespondError(c, http.StatusInternalServerError, "storage_write_failed", err)
	case errors.Is(err, services.ErrStorageRead):
		response.RespondError(c, http.StatusInternalServerError, "storage_read_failed", err)
	case errors.Is(err, services.ErrMetadataWrite):
		response.RespondError(c, http.StatusInternalServerError, "metadata_write_failed", err)
	default:
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
