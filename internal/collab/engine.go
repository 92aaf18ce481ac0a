package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/syncroom-dev/syncroom/pkg/metrics"
)

// Engine owns the set of live collaboration sessions. It is constructed once
// at process start and injected into the gateway layer; multiple isolated
// engines can coexist in one process, which keeps tests hermetic.
//
// Sessions are fully independent: the engine-level lock only guards the
// session map, and every per-session mutation is serialised by that
// session's own mutex. Handle sends never happen under either lock.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState

	store     SessionStore
	resources ResourceChecker
	log       *zap.Logger
	timeNow   func() time.Time
}

// EngineOption customises engine dependencies.
type EngineOption func(*Engine)

// WithSessionStore wires durable session metadata persistence.
func WithSessionStore(store SessionStore) EngineOption {
	return func(e *Engine) {
		e.store = store
	}
}

// WithResourceChecker wires resource validation for session creation.
func WithResourceChecker(checker ResourceChecker) EngineOption {
	return func(e *Engine) {
		e.resources = checker
	}
}

// WithLogger supplies the engine logger.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock overrides the clock used for timestamps (test helper).
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.timeNow = clock
		}
	}
}

// NewEngine constructs an engine with no live sessions.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		sessions: make(map[string]*sessionState),
		log:      zap.NewNop(),
		timeNow:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSessionParams carries the attributes required to open a session.
type CreateSessionParams struct {
	ResourceID   string
	CreatorID    string
	Name         string
	Participants []string
}

// CreateSession opens a new session. The creator receives admin, read, and
// write; each initial participant receives read and write. No broadcast is
// emitted because nobody is connected yet.
func (e *Engine) CreateSession(ctx context.Context, params CreateSessionParams) (string, error) {
	resourceID := strings.TrimSpace(params.ResourceID)
	if resourceID == "" {
		return "", errors.New("collab: resource id is required")
	}
	creatorID := strings.TrimSpace(params.CreatorID)
	if creatorID == "" {
		return "", errors.New("collab: creator id is required")
	}

	if e.resources != nil {
		ok, err := e.resources.ResourceExists(ctx, resourceID)
		if err != nil {
			return "", fmt.Errorf("collab: validate resource: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("%w: resource %s", ErrNotFound, resourceID)
		}
	}

	now := e.timeNow()
	session := newSessionState(uuid.NewString(), resourceID, strings.TrimSpace(params.Name), creatorID, now)
	session.perms.grant(creatorID, NewCapabilitySet(CapabilityAdmin, CapabilityRead, CapabilityWrite))
	for _, participant := range params.Participants {
		participant = strings.TrimSpace(participant)
		if participant == "" || session.perms.has(participant) {
			continue
		}
		session.perms.grant(participant, NewCapabilitySet(CapabilityRead, CapabilityWrite))
	}

	if e.store != nil {
		record := SessionRecord{
			ID:           session.id,
			ResourceID:   resourceID,
			Name:         session.name,
			CreatedBy:    creatorID,
			CreatedAt:    now,
			Participants: participantRecords(session.perms),
		}
		if err := e.store.CreateSession(ctx, record); err != nil {
			return "", fmt.Errorf("collab: persist session: %w", err)
		}
	}

	e.mu.Lock()
	e.sessions[session.id] = session
	e.mu.Unlock()

	metrics.ActiveSessions.Inc()
	e.log.Info("session created",
		zap.String("session_id", session.id),
		zap.String("resource_id", resourceID),
		zap.String("creator_id", creatorID))

	return session.id, nil
}

// Join connects a participant to the session. Existing participants are told
// about the join first; the new connection alone then receives a room_state
// snapshot that excludes itself, so its own join is never echoed back. A
// second join by the same participant replaces (and closes) the prior handle.
func (e *Engine) Join(ctx context.Context, sessionID, userID, displayName string, handle Handle) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("collab: user id is required")
	}
	if handle == nil {
		return errors.New("collab: connection handle is required")
	}

	session, err := e.lookup(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	if session.phase != phaseOpen {
		session.mu.Unlock()
		return ErrSessionClosed
	}
	caps := session.perms.capabilities(userID)
	if caps == nil {
		session.mu.Unlock()
		return ErrUnauthorized
	}

	now := e.timeNow()
	role := caps.Role()
	prev := session.conns.register(userID, handle)
	session.presence.upsert(userID, now, PresencePatch{DisplayName: &displayName, Role: &role})

	others := session.conns.snapshot(userID)
	roster := make([]PresenceRecord, 0, session.presence.len())
	for _, record := range session.presence.list() {
		if record.UserID != userID {
			roster = append(roster, record)
		}
	}
	count := session.presence.len()
	session.mu.Unlock()

	if prev != nil {
		if prev != handle {
			_ = prev.Close()
		}
	} else {
		metrics.ConnectedParticipants.Inc()
	}

	e.fanOut(session, others, Event{
		Type:      EventJoin,
		SessionID: session.id,
		UserID:    userID,
		Data: map[string]any{
			"display_name":      displayName,
			"role":              role,
			"participant_count": count,
		},
		Timestamp: now,
	})

	snapshot := Event{
		Type:      EventRoomState,
		SessionID: session.id,
		UserID:    userID,
		Data:      map[string]any{"participants": roster},
		Timestamp: now,
	}
	if err := handle.Send(snapshot); err != nil {
		// The connection died before receiving its snapshot; treat it like
		// any other dead handle.
		e.log.Debug("room_state delivery failed",
			zap.String("session_id", session.id),
			zap.String("user_id", userID),
			zap.Error(err))
		metrics.DeliveryFailures.Inc()
		e.pruneConnection(session, userID, handle)
	}

	return nil
}

// Leave disconnects the participant. Leaving twice, or without having
// joined, is a no-op: no error and no spurious leave broadcast.
func (e *Engine) Leave(sessionID, userID string) {
	session, err := e.lookup(sessionID)
	if err != nil {
		return
	}
	e.detach(session, userID, nil, true)
}

// LeaveHandle disconnects the participant only while handle is still their
// registered connection. A stale handle, already replaced by a rejoin, is
// ignored so the fresh connection survives; transports defer this instead of
// Leave when their read loop ends.
func (e *Engine) LeaveHandle(sessionID, userID string, handle Handle) {
	if handle == nil {
		return
	}
	session, err := e.lookup(sessionID)
	if err != nil {
		return
	}
	e.detach(session, userID, handle, true)
}

// detach removes the participant's connection and presence atomically with
// respect to the session lock, closes the handle, and optionally announces
// the departure to the remaining participants. A non-nil expect restricts
// the detach to that exact handle, mirroring the identity check in
// pruneConnection.
func (e *Engine) detach(session *sessionState, userID string, expect Handle, announce bool) {
	session.mu.Lock()
	if expect != nil {
		current, ok := session.conns.get(userID)
		if !ok || current != expect {
			session.mu.Unlock()
			return
		}
	}
	handle, connected := session.conns.unregister(userID)
	session.presence.remove(userID)
	var targets []participantHandle
	var count int
	if connected && announce {
		targets = session.conns.snapshot("")
		count = session.presence.len()
	}
	session.mu.Unlock()

	if !connected {
		return
	}

	_ = handle.Close()
	metrics.ConnectedParticipants.Dec()

	if announce {
		e.fanOut(session, targets, Event{
			Type:      EventLeave,
			SessionID: session.id,
			UserID:    userID,
			Data:      map[string]any{"participant_count": count},
		})
	}
}

// AddParticipant authorizes a new participant, defaulting to read and write
// when no capabilities are supplied. Requires admin.
func (e *Engine) AddParticipant(ctx context.Context, sessionID, actorID, userID string, caps ...Capability) error {
	set := NewCapabilitySet(caps...)
	if len(set) == 0 {
		set = NewCapabilitySet(CapabilityRead, CapabilityWrite)
	}
	return e.putParticipant(ctx, sessionID, actorID, userID, set, true)
}

// Grant installs an explicit capability set for the participant. Requires
// admin. Granting to a user who was not yet a participant announces them;
// updating an existing participant's capabilities does not.
func (e *Engine) Grant(ctx context.Context, sessionID, actorID, userID string, caps ...Capability) error {
	set := NewCapabilitySet(caps...)
	if len(set) == 0 {
		return errors.New("collab: capabilities are required")
	}
	return e.putParticipant(ctx, sessionID, actorID, userID, set, false)
}

func (e *Engine) putParticipant(ctx context.Context, sessionID, actorID, userID string, set CapabilitySet, announceExisting bool) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("collab: user id is required")
	}

	session, err := e.lookup(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	if session.phase != phaseOpen {
		session.mu.Unlock()
		return ErrSessionClosed
	}
	if !session.isAdminLocked(actorID) {
		session.mu.Unlock()
		return ErrUnauthorized
	}

	existed := session.perms.has(userID)
	session.perms.grant(userID, set)
	if record, ok := session.presence.get(userID); ok {
		record.Role = set.Role()
	}
	participants := participantRecords(session.perms)
	targets := session.conns.snapshot("")
	session.mu.Unlock()

	if e.store != nil {
		if err := e.store.SaveParticipants(ctx, session.id, participants); err != nil {
			return fmt.Errorf("collab: persist participants: %w", err)
		}
	}

	if !existed || announceExisting {
		e.fanOut(session, targets, Event{
			Type:      EventParticipantAdded,
			SessionID: session.id,
			UserID:    actorID,
			Data: map[string]any{
				"target":       userID,
				"capabilities": set.Slice(),
				"role":         set.Role(),
			},
		})
	}

	return nil
}

// RemoveParticipant revokes the participant's capabilities and, if they are
// connected, force-disconnects them before the removal is announced. The
// permission entry and the participant set change atomically. Requires admin.
func (e *Engine) RemoveParticipant(ctx context.Context, sessionID, actorID, targetID string) error {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return errors.New("collab: target user id is required")
	}

	session, err := e.lookup(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	if session.phase == phaseClosed {
		session.mu.Unlock()
		return ErrSessionClosed
	}
	if !session.isAdminLocked(actorID) {
		session.mu.Unlock()
		return ErrUnauthorized
	}
	if !session.perms.has(targetID) {
		session.mu.Unlock()
		return ErrNotFound
	}

	session.perms.revoke(targetID)
	handle, connected := session.conns.unregister(targetID)
	session.presence.remove(targetID)
	participants := participantRecords(session.perms)
	targets := session.conns.snapshot("")
	session.mu.Unlock()

	if connected {
		_ = handle.Close()
		metrics.ConnectedParticipants.Dec()
	}

	if e.store != nil {
		if err := e.store.SaveParticipants(ctx, session.id, participants); err != nil {
			return fmt.Errorf("collab: persist participants: %w", err)
		}
	}

	e.fanOut(session, targets, Event{
		Type:      EventParticipantRemoved,
		SessionID: session.id,
		UserID:    actorID,
		Data:      map[string]any{"target": targetID},
	})

	return nil
}

// Revoke removes the participant's permission entry. Removing the entry and
// removing the participant are one atomic operation, so this is the same as
// RemoveParticipant.
func (e *Engine) Revoke(ctx context.Context, sessionID, actorID, targetID string) error {
	return e.RemoveParticipant(ctx, sessionID, actorID, targetID)
}

// CloseSession broadcasts session_closed, drains every live connection, and
// marks the session terminal. The drain order across participants is
// unspecified; each individual disconnect completes before the session is
// marked closed. Requires admin.
func (e *Engine) CloseSession(ctx context.Context, sessionID, actorID string) error {
	session, err := e.lookup(sessionID)
	if err != nil {
		return err
	}
	return e.closeSession(ctx, session, actorID, false, "closed_by_admin")
}

func (e *Engine) closeSession(ctx context.Context, session *sessionState, actorID string, force bool, reason string) error {
	session.mu.Lock()
	if session.phase != phaseOpen {
		session.mu.Unlock()
		return ErrSessionClosed
	}
	if !force && !session.isAdminLocked(actorID) {
		session.mu.Unlock()
		return ErrUnauthorized
	}
	session.phase = phaseClosing
	targets := session.conns.snapshot("")
	session.mu.Unlock()

	e.fanOut(session, targets, Event{
		Type:      EventSessionClosed,
		SessionID: session.id,
		UserID:    actorID,
		Data:      map[string]any{"reason": reason},
	})

	// Drain without leave broadcasts: everyone already saw session_closed.
	var closeErrs error
	for _, target := range targets {
		session.mu.Lock()
		handle, connected := session.conns.unregister(target.userID)
		session.presence.remove(target.userID)
		session.mu.Unlock()
		if !connected {
			continue
		}
		if err := handle.Close(); err != nil {
			closeErrs = multierr.Append(closeErrs, err)
		}
		metrics.ConnectedParticipants.Dec()
	}
	if closeErrs != nil {
		e.log.Warn("connection close failures during session drain",
			zap.String("session_id", session.id),
			zap.Error(closeErrs))
	}

	session.mu.Lock()
	session.phase = phaseClosed
	session.mu.Unlock()

	metrics.ActiveSessions.Dec()
	e.log.Info("session closed",
		zap.String("session_id", session.id),
		zap.String("actor_id", actorID),
		zap.String("reason", reason))

	if e.store != nil {
		if err := e.store.MarkClosed(ctx, session.id, e.timeNow()); err != nil {
			return fmt.Errorf("collab: persist close: %w", err)
		}
	}

	return nil
}

// Shutdown force-closes every open session. Used on process shutdown.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.RLock()
	sessions := make([]*sessionState, 0, len(e.sessions))
	for _, session := range e.sessions {
		sessions = append(sessions, session)
	}
	e.mu.RUnlock()

	var errs error
	for _, session := range sessions {
		if err := e.closeSession(ctx, session, "", true, "shutdown"); err != nil && !errors.Is(err, ErrSessionClosed) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// UpdateCursor merges a cursor change into the sender's presence record and
// broadcasts it to everyone else. The sender must be connected.
func (e *Engine) UpdateCursor(sessionID, userID string, cursor CursorState) error {
	return e.updatePresence(sessionID, userID, EventCursorUpdate,
		PresencePatch{Cursor: &cursor}, cursor)
}

// SetTyping updates the sender's typing flag and broadcasts it to everyone
// else. The sender must be connected.
func (e *Engine) SetTyping(sessionID, userID string, typing bool) error {
	return e.updatePresence(sessionID, userID, EventTyping,
		PresencePatch{IsTyping: &typing}, TypingState{IsTyping: typing})
}

func (e *Engine) updatePresence(sessionID, userID string, eventType EventType, patch PresencePatch, payload any) error {
	session, err := e.lookup(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	if session.phase != phaseOpen {
		session.mu.Unlock()
		return ErrSessionClosed
	}
	if _, ok := session.conns.get(userID); !ok {
		session.mu.Unlock()
		return ErrNotFound
	}
	now := e.timeNow()
	session.presence.upsert(userID, now, patch)
	targets := session.conns.snapshot(userID)
	session.mu.Unlock()

	e.fanOut(session, targets, Event{
		Type:      eventType,
		SessionID: session.id,
		UserID:    userID,
		Data:      payload,
		Timestamp: now,
	})

	return nil
}

// Touch refreshes the participant's last-seen timestamp. No-op when the
// participant is not connected.
func (e *Engine) Touch(sessionID, userID string) {
	session, err := e.lookup(sessionID)
	if err != nil {
		return
	}

	session.mu.Lock()
	if _, ok := session.conns.get(userID); ok {
		session.presence.upsert(userID, e.timeNow(), PresencePatch{})
	}
	session.mu.Unlock()
}

// Capabilities returns a copy of the participant's capability set. Unknown
// participants get an empty set; the check itself is pure.
func (e *Engine) Capabilities(sessionID, userID string) (CapabilitySet, error) {
	session, err := e.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	caps := session.perms.capabilities(userID).Clone()
	session.mu.Unlock()

	if caps == nil {
		caps = NewCapabilitySet()
	}
	return caps, nil
}

// ParticipantInfo describes one authorized participant of a session.
type ParticipantInfo struct {
	UserID       string       `json:"user_id"`
	Capabilities []Capability `json:"capabilities"`
	Role         string       `json:"role"`
	Connected    bool         `json:"connected"`
}

// SessionInfo is a point-in-time snapshot of session metadata, authorized
// participants, and live presence.
type SessionInfo struct {
	ID           string            `json:"id"`
	ResourceID   string            `json:"resource_id"`
	Name         string            `json:"name,omitempty"`
	CreatedBy    string            `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	Active       bool              `json:"active"`
	Participants []ParticipantInfo `json:"participants"`
	Presence     []PresenceRecord  `json:"presence"`
}

// SessionInfo returns the snapshot for the session, or ErrNotFound.
func (e *Engine) SessionInfo(sessionID string) (SessionInfo, error) {
	session, err := e.lookup(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	info := SessionInfo{
		ID:         session.id,
		ResourceID: session.resourceID,
		Name:       session.name,
		CreatedBy:  session.createdBy,
		CreatedAt:  session.createdAt,
		Active:     session.phase == phaseOpen,
		Presence:   session.presence.list(),
	}
	for _, userID := range session.perms.members() {
		caps := session.perms.capabilities(userID)
		_, connected := session.conns.get(userID)
		info.Participants = append(info.Participants, ParticipantInfo{
			UserID:       userID,
			Capabilities: caps.Slice(),
			Role:         caps.Role(),
			Connected:    connected,
		})
	}

	return info, nil
}

// SweepIdle force-leaves connections whose last-seen timestamp is older than
// the grace period and returns how many were swept.
func (e *Engine) SweepIdle(gracePeriod time.Duration) int {
	if gracePeriod <= 0 {
		return 0
	}
	cutoff := e.timeNow().Add(-gracePeriod)

	e.mu.RLock()
	sessions := make([]*sessionState, 0, len(e.sessions))
	for _, session := range e.sessions {
		sessions = append(sessions, session)
	}
	e.mu.RUnlock()

	swept := 0
	for _, session := range sessions {
		session.mu.Lock()
		var stale []string
		for _, record := range session.presence.list() {
			if record.LastSeen.Before(cutoff) {
				stale = append(stale, record.UserID)
			}
		}
		session.mu.Unlock()

		for _, userID := range stale {
			e.log.Debug("sweeping idle connection",
				zap.String("session_id", session.id),
				zap.String("user_id", userID))
			e.detach(session, userID, nil, true)
			swept++
		}
	}

	return swept
}

// Count returns the number of sessions known to the engine, including
// closed ones that have not been garbage collected.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// lookup is the only cross-session read allowed without a session lock: a
// coarse existence check used for fast-path rejection.
func (e *Engine) lookup(sessionID string) (*sessionState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrNotFound
	}

	e.mu.RLock()
	session, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

func participantRecords(table *permissionTable) []ParticipantRecord {
	members := table.members()
	out := make([]ParticipantRecord, 0, len(members))
	for _, userID := range members {
		out = append(out, ParticipantRecord{
			UserID:       userID,
			Capabilities: table.capabilities(userID).Slice(),
		})
	}
	return out
}
