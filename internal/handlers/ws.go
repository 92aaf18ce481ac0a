package handlers

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	iauth "github.com/syncroom-dev/syncroom/internal/auth"
	"github.com/syncroom-dev/syncroom/internal/collab"
	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"
	"github.com/syncroom-dev/syncroom/pkg/logger"
	"github.com/syncroom-dev/syncroom/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 << 10 // 512 KiB

	sendBufferSize = 64
	joinWait       = 10 * time.Second
)

var (
	errClientClosed = errors.New("ws: connection closed")
	errSlowConsumer = errors.New("ws: outbound buffer full")
)

// StreamHandler upgrades authenticated HTTP requests into collaboration
// websocket connections. The first client frame must be a join envelope; all
// subsequent frames are routed to the engine.
type StreamHandler struct {
	engine   *collab.Engine
	router   *collab.Router
	jwt      *iauth.JWTService
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewStreamHandler constructs the websocket gateway. Content persistence is
// a router concern; see NewContentRecorder.
func NewStreamHandler(engine *collab.Engine, router *collab.Router, jwt *iauth.JWTService) *StreamHandler {
	return &StreamHandler{
		engine: engine,
		router: router,
		jwt:    jwt,
		log:    logger.WithModule("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Allow same-origin requests and explicit localhost development.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// Stream validates the caller's token and upgrades the connection.
// GET /ws?token=...
func (h *StreamHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.engine == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}
	if token == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	socket, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	client := newWSClient(socket)
	go client.writeLoop()
	h.serve(c, client, userID, claims.DisplayName)
}

// serve runs the read side of one connection: join negotiation first, then
// the event loop. It blocks until the connection ends.
func (h *StreamHandler) serve(c *gin.Context, client *wsClient, userID, displayName string) {
	defer client.Close()

	client.socket.SetReadLimit(maxMessageSize)
	client.socket.SetPongHandler(func(string) error {
		_ = client.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The first frame must be a join envelope naming the session.
	_ = client.socket.SetReadDeadline(time.Now().Add(joinWait))
	var join collab.Envelope
	if err := client.socket.ReadJSON(&join); err != nil {
		return
	}
	sessionID := strings.TrimSpace(join.SessionID)
	if join.Type != collab.EventJoin || sessionID == "" {
		client.sendError(sessionID, "expected a join frame")
		return
	}

	ctx := requestContext(c)
	if err := h.engine.Join(ctx, sessionID, userID, displayName, client); err != nil {
		client.sendError(sessionID, joinErrorMessage(err))
		h.log.Debug("join rejected",
			zap.String("session_id", sessionID),
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	// Leave only tears down this connection's registration. After a rejoin
	// replaced it, the fresh handle must survive this goroutine's exit.
	defer h.engine.LeaveHandle(sessionID, userID, client)

	_ = client.socket.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var envelope collab.Envelope
		if err := client.socket.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Debug("unexpected close",
					zap.String("session_id", sessionID),
					zap.String("user_id", userID),
					zap.Error(err))
			}
			return
		}
		_ = client.socket.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.router.HandleEvent(ctx, sessionID, userID, envelope); err != nil {
			// Errors here are local to one envelope; tell the sender and
			// keep the connection alive.
			client.sendError(sessionID, appErrors.FromError(err).Message)
		}
	}
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, collab.ErrSessionClosed):
		return "session is closed"
	case errors.Is(err, collab.ErrUnauthorized):
		return "not a participant of this session"
	case errors.Is(err, collab.ErrNotFound):
		return "unknown session"
	default:
		return "join failed"
	}
}

// wsClient adapts one websocket to the engine's Handle contract. Send
// enqueues into a bounded buffer and fails fast when the peer cannot keep
// up, which the engine treats as a dead connection.
type wsClient struct {
	socket *websocket.Conn
	send   chan collab.Event
	done   chan struct{}
	once   sync.Once
}

func newWSClient(socket *websocket.Conn) *wsClient {
	return &wsClient{
		socket: socket,
		send:   make(chan collab.Event, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Send implements collab.Handle.
func (c *wsClient) Send(event collab.Event) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	default:
		return errSlowConsumer
	}
}

// Close implements collab.Handle. Safe to call more than once.
func (c *wsClient) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *wsClient) sendError(sessionID, message string) {
	_ = c.Send(collab.Event{
		Type:      collab.EventError,
		SessionID: sessionID,
		Data:      map[string]any{"message": message},
		Timestamp: time.Now(),
	})
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case event := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(event); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			// Flush queued events before saying goodbye.
			for {
				select {
				case event := <-c.send:
					_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.socket.WriteJSON(event); err != nil {
						return
					}
				default:
					_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.socket.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
