package collab

import (
	"sync"
	"time"
)

// sessionPhase tracks the one-way session lifecycle.
type sessionPhase int

const (
	phaseOpen sessionPhase = iota
	phaseClosing
	phaseClosed
)

func (p sessionPhase) String() string {
	switch p {
	case phaseOpen:
		return "open"
	case phaseClosing:
		return "closing"
	default:
		return "closed"
	}
}

// sessionState is the single ownership boundary for one session. Every
// mutation of its permission table, presence directory, and connection
// registry happens under mu; sessions never share a lock, so contention is
// bounded to participants of the same session.
type sessionState struct {
	mu sync.Mutex

	id         string
	resourceID string
	name       string
	createdBy  string
	createdAt  time.Time

	phase    sessionPhase
	perms    *permissionTable
	presence *presenceDirectory
	conns    *connectionRegistry
}

func newSessionState(id, resourceID, name, createdBy string, createdAt time.Time) *sessionState {
	return &sessionState{
		id:         id,
		resourceID: resourceID,
		name:       name,
		createdBy:  createdBy,
		createdAt:  createdAt,
		phase:      phaseOpen,
		perms:      newPermissionTable(),
		presence:   newPresenceDirectory(),
		conns:      newConnectionRegistry(),
	}
}

// isAdminLocked reports whether the user holds admin. Caller holds mu.
func (s *sessionState) isAdminLocked(userID string) bool {
	return s.perms.capabilities(userID).Has(CapabilityAdmin)
}
