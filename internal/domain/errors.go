package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrChainContention    = errors.New("chain contention")
	ErrUpstreamGeneration = errors.New("upstream generation failed")
)

// NotFoundError indicates a resource was not found
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFound builds a NotFoundError for an integer-keyed resource.
func NewNotFound(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprintf("%d", id)}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// Is allows errors.Is() to match against ErrNotFound
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidOperationError is returned when an operation does not apply to the
// target, e.g. regenerating a user message.
type InvalidOperationError struct {
	Reason string
}

func (e *InvalidOperationError) Error() string   { return e.Reason }
func (e *InvalidOperationError) StatusCode() int { return http.StatusUnprocessableEntity }
func (e *InvalidOperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (conversation, ai_model, ...)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string   { return e.Message }
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// GenerationFailedError is returned after a bot message was persisted with
// status=failed because the generation backend errored.
type GenerationFailedError struct {
	MessageID int64
	Cause     error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed for message %d: %v", e.MessageID, e.Cause)
}

func (e *GenerationFailedError) StatusCode() int { return http.StatusBadGateway }

func (e *GenerationFailedError) Unwrap() error { return e.Cause }

// Is allows errors.Is() to match against ErrUpstreamGeneration
func (e *GenerationFailedError) Is(target error) bool {
	return target == ErrUpstreamGeneration
}
