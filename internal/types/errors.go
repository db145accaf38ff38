package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services. Handlers map these to HTTP status
// codes at the response boundary.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthenticated = errors.New("authentication required")

	// Tour plan orchestration.
	ErrNoLocations      = errors.New("at least one selected location is required")
	ErrSessionExpired   = errors.New("plan session has expired")
	ErrSessionOwnership = errors.New("plan session belongs to another user")

	// AI engine transport.
	ErrEngineTimeout     = errors.New("ai engine request timed out")
	ErrEngineUnreachable = errors.New("ai engine unreachable")
	ErrEngineDecode      = errors.New("ai engine returned an undecodable payload")

	// Trip-detail extraction.
	ErrNoContent         = errors.New("completion returned no content")
	ErrMalformedResponse = errors.New("completion content is not a structured object")
)

// UpstreamError carries the status and body of a non-2xx AI engine reply so
// callers see the true upstream condition instead of a flattened message.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ai engine returned status %d", e.Status)
	}
	return fmt.Sprintf("ai engine returned status %d: %s", e.Status, e.Body)
}
