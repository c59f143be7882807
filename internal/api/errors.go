package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/apperr"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	IDs     []string `json:"ids,omitempty"`
}

// classify maps an error to its HTTP status and stable code. Order matters:
// a missing dependency also matches ErrNotFound.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrMissingDependency):
		return http.StatusNotFound, "missing_dependency"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrCircularDependency):
		return http.StatusConflict, "circular_dependency"
	case errors.Is(err, apperr.ErrInvalidProgress):
		return http.StatusUnprocessableEntity, "invalid_progress"
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, apperr.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, apperr.ErrInvariantViolation):
		return http.StatusInternalServerError, "invariant_violation"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": status,
		}).WithError(err).Error("api: request failed")
		if code == "internal" {
			msg = "internal error"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
		Code:    code,
		Message: msg,
		IDs:     apperr.IDs(err),
	}})
}

func (h *handlers) badRequest(c *gin.Context, format string, args ...any) {
	h.fail(c, apperr.Validationf(format, args...))
}
