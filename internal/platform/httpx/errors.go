// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"
)

// ErrValidation marks errors caused by bad client input.
var ErrValidation = errors.New("validation failed")

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusGatewayTimeout, "Request Timed Out", "")
	case errors.Is(err, context.Canceled):
		Problem(w, http.StatusRequestTimeout, "Request Cancelled", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
