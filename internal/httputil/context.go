package httputil

import (
	"context"
	"net/http"

	"parley/internal/domain/services"
)

// Context key type to avoid collisions
type contextKey string

const (
	identityKey  contextKey = "identity"
	requestIDKey contextKey = "requestID"
)

// WithIdentity adds the authenticated caller to the request context
func WithIdentity(r *http.Request, identity services.Identity) *http.Request {
	ctx := context.WithValue(r.Context(), identityKey, identity)
	return r.WithContext(ctx)
}

// IdentityFrom retrieves the caller, ok is false when the request was not authenticated
func IdentityFrom(r *http.Request) (services.Identity, bool) {
	identity, ok := r.Context().Value(identityKey).(services.Identity)
	return identity, ok && identity.UserID != ""
}

// WithRequestID stores the request id for logging
func WithRequestID(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestIDKey, id))
}

// RequestID returns the request id, or empty string if none was assigned
func RequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
