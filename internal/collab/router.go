package collab

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/syncroom-dev/syncroom/pkg/metrics"
)

// ContentSink receives content events that passed the router's write
// authorization, before they are fanned out. Implementations persist or
// otherwise record the event; failures must stay local to the sink.
type ContentSink func(ctx context.Context, sessionID, userID string, envelope Envelope)

// Router classifies inbound client envelopes and invokes the matching engine
// operation. One router serves all sessions; it holds no state of its own.
type Router struct {
	engine *Engine
	log    *zap.Logger
	sink   ContentSink
}

// RouterOption customises router construction.
type RouterOption func(*Router)

// WithContentSink registers a sink invoked for each authorized content
// event. The router makes the write-capability decision exactly once, so the
// sink and the broadcast can never disagree about authorization.
func WithContentSink(sink ContentSink) RouterOption {
	return func(r *Router) {
		r.sink = sink
	}
}

// NewRouter constructs a router bound to the engine.
func NewRouter(engine *Engine, log *zap.Logger, opts ...RouterOption) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	router := &Router{engine: engine, log: log}
	for _, opt := range opts {
		opt(router)
	}
	return router
}

// HandleEvent processes one envelope sent by userID on sessionID. Events
// whose sender lacks the write capability are dropped without notifying the
// sender; unknown types are ignored. Errors returned here are local to the
// failed operation and never affect other sessions or participants.
func (r *Router) HandleEvent(ctx context.Context, sessionID, userID string, envelope Envelope) error {
	switch envelope.Type {
	case EventCursorUpdate:
		var cursor CursorState
		if err := json.Unmarshal(envelope.Data, &cursor); err != nil {
			return fmt.Errorf("collab: decode cursor payload: %w", err)
		}
		return r.engine.UpdateCursor(sessionID, userID, cursor)

	case EventTyping:
		var typing TypingState
		if err := json.Unmarshal(envelope.Data, &typing); err != nil {
			return fmt.Errorf("collab: decode typing payload: %w", err)
		}
		return r.engine.SetTyping(sessionID, userID, typing.IsTyping)

	case EventMessage, EventEdit, EventComment:
		caps, err := r.engine.Capabilities(sessionID, userID)
		if err != nil {
			return err
		}
		if !caps.Has(CapabilityWrite) {
			// Dropped silently: the sender is not notified.
			metrics.EventsDropped.WithLabelValues("unauthorized").Inc()
			r.log.Debug("dropping write event from read-only participant",
				zap.String("session_id", sessionID),
				zap.String("user_id", userID),
				zap.String("event", string(envelope.Type)))
			return nil
		}

		if r.sink != nil {
			// Persist ahead of the fan-out so history survives even when
			// every delivery fails.
			r.sink(ctx, sessionID, userID, envelope)
		}

		event := Event{
			Type:      envelope.Type,
			SessionID: sessionID,
			UserID:    userID,
			Data:      json.RawMessage(envelope.Data),
		}
		_, err = r.engine.Broadcast(sessionID, event, userID)
		return err

	case EventJoin:
		// Joins are negotiated when the connection opens, not via the
		// event path.
		return nil

	default:
		metrics.EventsDropped.WithLabelValues("unknown_type").Inc()
		r.log.Debug("ignoring unknown event type",
			zap.String("session_id", sessionID),
			zap.String("user_id", userID),
			zap.String("event", string(envelope.Type)))
		return nil
	}
}
