package collab

import (
	"go.uber.org/zap"

	"github.com/syncroom-dev/syncroom/pkg/metrics"
)

// Broadcast fans the event out to every connected participant of the
// session, skipping excludeUser when non-empty, and returns how many handles
// accepted it. Only open sessions accept broadcasts.
func (e *Engine) Broadcast(sessionID string, event Event, excludeUser string) (int, error) {
	session, err := e.lookup(sessionID)
	if err != nil {
		return 0, err
	}

	session.mu.Lock()
	if session.phase != phaseOpen {
		session.mu.Unlock()
		return 0, ErrSessionClosed
	}
	targets := session.conns.snapshot(excludeUser)
	session.mu.Unlock()

	if event.SessionID == "" {
		event.SessionID = session.id
	}
	return e.fanOut(session, targets, event), nil
}

// fanOut attempts delivery on each snapshotted handle. A failed send never
// aborts delivery to the rest; the failed handle is treated as evidence the
// connection is dead and is pruned, which is how the engine recovers from
// ungraceful disconnects that never fired an explicit close.
func (e *Engine) fanOut(session *sessionState, targets []participantHandle, event Event) int {
	if len(targets) == 0 {
		return 0
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.timeNow()
	}

	delivered := 0
	for _, target := range targets {
		if err := target.handle.Send(event); err != nil {
			e.log.Debug("delivery failed, pruning connection",
				zap.String("session_id", session.id),
				zap.String("user_id", target.userID),
				zap.String("event", string(event.Type)),
				zap.Error(err))
			metrics.DeliveryFailures.Inc()
			e.pruneConnection(session, target.userID, target.handle)
			continue
		}
		delivered++
	}

	if delivered > 0 {
		metrics.BroadcastsDelivered.WithLabelValues(string(event.Type)).Add(float64(delivered))
	}
	return delivered
}

// pruneConnection drops a dead handle. If the participant re-registered a
// fresh handle since the snapshot was taken, the fresh one is left alone.
func (e *Engine) pruneConnection(session *sessionState, userID string, dead Handle) {
	session.mu.Lock()
	current, ok := session.conns.get(userID)
	if !ok || current != dead {
		session.mu.Unlock()
		_ = dead.Close()
		return
	}
	session.conns.unregister(userID)
	session.presence.remove(userID)
	session.mu.Unlock()

	_ = dead.Close()
	metrics.ConnectedParticipants.Dec()
}
