package collab

import "errors"

// Recoverable error kinds surfaced by engine operations. Delivery failures
// are never surfaced; they trigger connection cleanup internally.
var (
	// ErrUnauthorized indicates a capability check failed for the acting user.
	ErrUnauthorized = errors.New("collab: unauthorized")
	// ErrSessionClosed indicates the operation targeted a terminal session.
	ErrSessionClosed = errors.New("collab: session closed")
	// ErrNotFound indicates the session or participant is unknown to the registry.
	ErrNotFound = errors.New("collab: not found")
)
