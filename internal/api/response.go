package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/boutique-store/internal/database"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data any) {
	c.JSON(statusCode, Response{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, Response{
		Status:  "fail",
		Message: message,
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, database.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrOptimisticLockFailed),
		errors.Is(err, database.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, database.ErrInvalidQuantity),
		errors.Is(err, database.ErrInvalidRating),
		errors.Is(err, database.ErrInvalidPrice),
		errors.Is(err, database.ErrCategoryCycle),
		errors.Is(err, database.ErrInvalidArgument):
		return http.StatusBadRequest
	case database.IsRetryable(err):
		return http.StatusServiceUnavailable
	case database.IsUniqueViolation(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes the error envelope for err. Server-side failures are logged and
// reported without internals.
func (h *Handler) fail(c *gin.Context, err error) {
	code := statusFor(err)
	entry := h.log.WithError(err).WithField("path", c.FullPath())

	switch {
	case code == http.StatusServiceUnavailable:
		entry.Warn("transient store failure")
		c.Header("Retry-After", "1")
		ErrorResponse(c, code, "temporarily unavailable, please retry")
	case code >= http.StatusInternalServerError:
		entry.Error("request failed")
		ErrorResponse(c, code, "internal error")
	default:
		entry.Debug("request rejected")
		ErrorResponse(c, code, err.Error())
	}
}
