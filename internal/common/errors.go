package common

import (
	"cmp"
	"errors"
	"net/http"
)

// AppError is an error that already knows its HTTP rendering. Services
// return it for input problems that need a specific code or details.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    any
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// ErrorMapping binds a sentinel error to the HTTP response it should produce.
type ErrorMapping struct {
	Err    error
	Status int
	Code   string
}

// WriteError renders err. An AppError anywhere in the chain renders as
// itself, then the first mapping matching with errors.Is applies. Anything
// else is a 500 whose message is not leaked.
func WriteError(w http.ResponseWriter, err error, mappings ...ErrorMapping) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONError(w, cmp.Or(appErr.HTTPStatus, http.StatusBadRequest), cmp.Or(appErr.Code, "BAD_REQUEST"), appErr.Message, appErr.Details)
		return
	}
	for _, m := range mappings {
		if err != nil && errors.Is(err, m.Err) {
			JSONError(w, m.Status, m.Code, err.Error(), nil)
			return
		}
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
