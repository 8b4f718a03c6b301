// Package apperr defines the error categories the API surfaces to clients
// and their HTTP status mapping. Handlers match with errors.Is and never
// leak wrapped causes to the response body.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthentication: no identity present, or credentials rejected.
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorization: identity present but no valid parent elevation.
	ErrAuthorization = errors.New("parent mode required")
	// ErrValidation: malformed or missing required fields.
	ErrValidation = errors.New("invalid input")
	// ErrConflict: the requested transition is invalid for the current state.
	ErrConflict = errors.New("conflict")
	// ErrNotFound: the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable: a datastore or blob-store call failed; the operation
	// was not applied and may be retried by the user.
	ErrUnavailable = errors.New("temporarily unavailable")
)

func Authenticationf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrAuthentication)...)
}

func Authorizationf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrAuthorization)...)
}

func Validationf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrValidation)...)
}

func Conflictf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrConflict)...)
}

func NotFoundf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrNotFound)...)
}

func Unavailablef(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrUnavailable)...)
}

// Status maps an error to the HTTP status code it should produce.
// Unrecognized errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
