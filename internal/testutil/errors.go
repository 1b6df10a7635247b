package testutil

import (
	"errors"

	apperrors "api-integrator/internal/common/errors"
)

// Common test errors
var (
	ErrConnectionRefused = apperrors.TransportError("request failed", errors.New("connection refused"))
	ErrTestFailure       = errors.New("test failure")
)

// Rejected returns the error a source reports for a non-2xx status
func Rejected(status int) error {
	return apperrors.RequestError(status, []byte(`{"error":"rejected"}`))
}
