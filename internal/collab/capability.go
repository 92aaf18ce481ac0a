package collab

import "strings"

// Capability is the unit of authorization within a session.
type Capability string

const (
	// CapabilityAdmin allows participant and session lifecycle management.
	CapabilityAdmin Capability = "admin"
	// CapabilityRead allows joining a session and observing events.
	CapabilityRead Capability = "read"
	// CapabilityWrite allows sending message, edit, and comment events.
	CapabilityWrite Capability = "write"
)

// ParseCapability normalises a capability name. The boolean reports whether
// the input named a known capability.
func ParseCapability(value string) (Capability, bool) {
	switch Capability(strings.ToLower(strings.TrimSpace(value))) {
	case CapabilityAdmin:
		return CapabilityAdmin, true
	case CapabilityRead:
		return CapabilityRead, true
	case CapabilityWrite:
		return CapabilityWrite, true
	default:
		return "", false
	}
}

// CapabilitySet holds the capabilities granted to one participant.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the supplied capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, cap := range caps {
		set[cap] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(cap Capability) bool {
	_, ok := s[cap]
	return ok
}

// Clone returns an independent copy of the set.
func (s CapabilitySet) Clone() CapabilitySet {
	if s == nil {
		return nil
	}
	out := make(CapabilitySet, len(s))
	for cap := range s {
		out[cap] = struct{}{}
	}
	return out
}

// Slice returns the capabilities in stable admin, read, write order.
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for _, cap := range []Capability{CapabilityAdmin, CapabilityRead, CapabilityWrite} {
		if s.Has(cap) {
			out = append(out, cap)
		}
	}
	return out
}

// Role derives the presence role shown to other participants.
func (s CapabilitySet) Role() string {
	switch {
	case s.Has(CapabilityAdmin):
		return "admin"
	case s.Has(CapabilityWrite):
		return "editor"
	default:
		return "viewer"
	}
}
