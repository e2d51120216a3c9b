package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"parley/internal/domain"
	"parley/internal/httputil"
)

// retryAfterSeconds is sent with 409 when a chain stayed contended after retries
const retryAfterSeconds = "1"

// handleError converts domain errors to RFC 7807 responses
func handleError(w http.ResponseWriter, err error) {
	var genErr *domain.GenerationFailedError

	switch {
	case errors.As(err, &genErr):
		httputil.RespondErrorWithExtras(w, http.StatusBadGateway, genErr.Error(), map[string]any{
			"message_id": genErr.MessageID,
		})
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidOperation):
		httputil.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrChainContention):
		w.Header().Set("Retry-After", retryAfterSeconds)
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUpstreamGeneration):
		httputil.RespondError(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error("unhandled error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
