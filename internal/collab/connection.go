package collab

// Handle is the outbound channel for one connected participant. Send must
// return promptly: implementations are expected to enqueue into a bounded
// buffer and report an error when the buffer is full or the transport is
// gone. A Send error marks the connection dead and triggers cleanup.
type Handle interface {
	Send(Event) error
	Close() error
}

// participantHandle pairs a handle with its owner for fan-out snapshots.
type participantHandle struct {
	userID string
	handle Handle
}

// connectionRegistry maps connected participants to their live handle. At
// most one handle exists per participant; registering over an existing entry
// returns the previous handle so the caller can close it. Not self-locking;
// guarded by the owning session's mutex.
type connectionRegistry struct {
	handles map[string]Handle
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{handles: make(map[string]Handle)}
}

// register installs the handle and returns the one it replaced, if any.
func (r *connectionRegistry) register(userID string, handle Handle) Handle {
	prev := r.handles[userID]
	r.handles[userID] = handle
	return prev
}

func (r *connectionRegistry) unregister(userID string) (Handle, bool) {
	handle, ok := r.handles[userID]
	if ok {
		delete(r.handles, userID)
	}
	return handle, ok
}

func (r *connectionRegistry) get(userID string) (Handle, bool) {
	handle, ok := r.handles[userID]
	return handle, ok
}

// snapshot copies the current handles, skipping the excluded participant.
// Callers fan out on the copy after releasing the session lock.
func (r *connectionRegistry) snapshot(exclude string) []participantHandle {
	out := make([]participantHandle, 0, len(r.handles))
	for userID, handle := range r.handles {
		if exclude != "" && userID == exclude {
			continue
		}
		out = append(out, participantHandle{userID: userID, handle: handle})
	}
	return out
}

func (r *connectionRegistry) len() int {
	return len(r.handles)
}
