package collab

import "sort"

// permissionTable maps authorized participants to their capability set. A
// participant belongs to the session iff an entry exists, and entries are
// never empty. Not self-locking; guarded by the owning session's mutex.
// Admin enforcement for mutations happens in the engine, which knows the
// acting user.
type permissionTable struct {
	caps map[string]CapabilitySet
}

func newPermissionTable() *permissionTable {
	return &permissionTable{caps: make(map[string]CapabilitySet)}
}

// capabilities returns the participant's set, or nil when unknown. The
// returned set is live; callers that escape the session lock must Clone.
func (t *permissionTable) capabilities(userID string) CapabilitySet {
	return t.caps[userID]
}

func (t *permissionTable) has(userID string) bool {
	_, ok := t.caps[userID]
	return ok
}

// grant installs the capability set for the participant. Empty sets are
// rejected by the engine before reaching here.
func (t *permissionTable) grant(userID string, caps CapabilitySet) {
	t.caps[userID] = caps.Clone()
}

// revoke removes the participant's entry entirely.
func (t *permissionTable) revoke(userID string) bool {
	if _, ok := t.caps[userID]; !ok {
		return false
	}
	delete(t.caps, userID)
	return true
}

// members returns the authorized participant ids in stable sorted order.
func (t *permissionTable) members() []string {
	out := make([]string, 0, len(t.caps))
	for userID := range t.caps {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

func (t *permissionTable) len() int {
	return len(t.caps)
}
