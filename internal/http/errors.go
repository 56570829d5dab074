package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"coursehub/internal/domain"
)

const internalErrorMessage = "Something went wrong"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
}

// Messages for specific errors. Checked in order, so specific errors come
// before the kinds they wrap.
var errorMessages = []struct {
	err error
	msg string
}{
	{domain.ErrUserAlreadyExists, "User Already Exists"},
	{domain.ErrInvalidCredentials, "Invalid Credentials"},
	{domain.ErrUserNotFound, "User not found"},
	{domain.ErrCourseNotFound, "Course not found"},
	{domain.ErrAlreadyPurchased, "Already Purchased Course"},
	{domain.ErrCourseHasPurchases, "Course has purchases"},
	{domain.ErrNotCourseOwner, "You don't own the course"},
	{domain.ErrValidation, "Invalid request"},
	{domain.ErrUnauthenticated, "Unauthorized"},
	{domain.ErrForbidden, "Forbidden"},
	{domain.ErrNotFound, "Not found"},
	{domain.ErrConflict, "Conflict"},
	{domain.ErrBusy, "Service busy, try again"},
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return internalErrorMessage
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:      msg,
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// respondError writes the error body for err. Internal errors are logged and
// replaced by a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).WithError(err).Error("request failed")
		writeError(c, status, internalErrorMessage)
		return
	}
	writeError(c, status, messageFor(err))
}
