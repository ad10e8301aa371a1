// Package handlers implements the HTTP endpoints of the hub.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tipsearch/hub/internal/api/response"
	"github.com/tipsearch/hub/internal/api/validation"
	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/service"
)

// respondServiceError maps service errors to problem responses. Unexpected errors are logged
// with their cause and answered with the generic detail only.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, detail string) {
	var (
		validationErr *huberrors.ValidationError
		notFoundErr   *huberrors.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		response.RespondBadRequest(w, validationErr.Error())
	case errors.Is(err, service.ErrEmptyQuery):
		response.RespondBadRequest(w, "query is required and must be non-empty")
	case errors.As(err, &notFoundErr):
		response.RespondNotFound(w, notFoundErr.Error())
	case errors.Is(err, huberrors.ErrUnavailable):
		slog.ErrorContext(r.Context(), detail, "error", err)
		response.RespondServiceUnavailable(w, detail+": model backend unavailable")
	default:
		slog.ErrorContext(r.Context(), detail, "error", err)
		response.RespondInternalServerError(w, detail)
	}
}

// decodeBody decodes and validates a JSON body, writing the 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := validation.DecodeJSON(r, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				"request body exceeds maximum allowed size")

			return false
		}

		response.RespondBadRequest(w, "Invalid request body")

		return false
	}

	if err := validation.ValidateStruct(dst); err != nil {
		validation.RespondValidationError(w, err)
		return false
	}

	return true
}
