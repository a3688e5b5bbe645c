package controlplane

import (
	"errors"
	"net/http"

	"github.com/fentz26/mealtime/internal/scheduler"
)

// Sentinel errors for control plane operations.
var (
	ErrInvalidRequest = errors.New("invalid request")
)

// statusFor maps service and engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, scheduler.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrEngineStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
