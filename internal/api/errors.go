package api

import (
	"errors"
	"net/http"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
)

const retryAfterSeconds = "5"

// statusFor maps a scheduler error to an HTTP status and a client-safe
// message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, job.ErrQueueFull):
		return http.StatusServiceUnavailable, "queue is full, retry later"
	case errors.Is(err, job.ErrClosed):
		return http.StatusServiceUnavailable, "service is shutting down"
	case errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound, "job not found"
	case errors.Is(err, job.ErrForbidden):
		return http.StatusForbidden, "job belongs to another owner"
	case errors.Is(err, job.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, job.ErrInvalidRequest), errors.Is(err, job.ErrUnknownKind):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
