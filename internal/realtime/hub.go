// Package realtime implements the Real-time Hub (C6): a WebSocket fan-out
// server that pushes order and payment events to POS terminals, kitchen
// display systems, and management dashboards as they happen.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cypherarest/poscore/internal/auth"
	"github.com/cypherarest/poscore/internal/logger"
	"github.com/cypherarest/poscore/internal/middleware"
	"github.com/cypherarest/poscore/internal/orders"
	"github.com/cypherarest/poscore/internal/tenant"
	"go.uber.org/zap"
)

// ConnKind is the declared purpose of a connection, fixed for its lifetime
// (§4.6): it decides the default topic subscription set.
type ConnKind string

const (
	ConnPOS        ConnKind = "pos"
	ConnKitchen    ConnKind = "kitchen"
	ConnManagement ConnKind = "management"
)

// Close codes (§4.6) returned to the client over the WebSocket close frame.
const (
	CloseAuthTimeout  = 4401
	CloseForbidden    = 4403
	CloseRateLimited  = 4429
	CloseBackpressure = 4430
	CloseNormal       = 4000
)

const (
	authDeadline     = 5 * time.Second
	pingInterval     = 30 * time.Second
	pongWait         = pingInterval + 10*time.Second
	outboundLimit    = 1 << 20 // 1 MiB
	maxConnsPerUser  = 5
	maxConnsPerIP    = 20
	perConnMsgRateHz = 20
)

// allowedTopics bounds what a client may subscribe to over the wire, so a
// malformed or malicious subscribe frame can't create an arbitrary topic key.
var allowedTopics = map[string]struct{}{
	"order.confirmed": {}, "order.status_changed": {}, "order.cancelled": {},
	"payment.captured": {}, "payment.refunded": {},
}

// Hub holds the room registry and connection bookkeeping. It implements
// orders.Publisher so the Order Engine (and Payment Orchestrator) can push
// events through it without importing this package.
type Hub struct {
	mu          sync.RWMutex
	restaurants map[uuid.UUID]map[*conn]struct{}
	users       map[uuid.UUID]map[*conn]struct{}
	connsByIP   map[string]int

	limiters *middleware.RateLimiter
}

var _ orders.Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		restaurants: make(map[uuid.UUID]map[*conn]struct{}),
		users:       make(map[uuid.UUID]map[*conn]struct{}),
		connsByIP:   make(map[string]int),
		limiters:    middleware.NewRateLimiter(perConnMsgRateHz, perConnMsgRateHz*2),
	}
}

type conn struct {
	ws           *websocket.Conn
	hub          *Hub
	verifier     *auth.Verifier
	connID       string
	restaurantID uuid.UUID
	userID       uuid.UUID
	kind         ConnKind
	remoteIP     string

	topicsMu sync.RWMutex
	topics   map[string]struct{}

	sendMu     sync.Mutex
	closed     bool
	registered bool
}

// envelope is the wire shape of every message sent or received on the hub,
// mirroring the HTTP response envelope's {type,data} split for consistency
// across transports (§4.6, §4.7).
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inboundFrame is the generic shape of a client→server frame; Data is
// decoded lazily per Type since each client frame type carries a different
// payload (§6: auth, ping, subscribe, unsubscribe).
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type authFrameData struct {
	Token string `json:"token"`
}

type topicFrameData struct {
	Topics []string `json:"topics"`
}

// newConn builds an unauthenticated, unregistered connection wrapper. The
// caller must drive it through runAuthThenServe.
func (h *Hub) newConn(ws *websocket.Conn, verifier *auth.Verifier, restaurantID uuid.UUID, kind ConnKind, remoteIP string) *conn {
	return &conn{ws: ws, hub: h, verifier: verifier, connID: uuid.NewString(), restaurantID: restaurantID, kind: kind, remoteIP: remoteIP}
}

// runAuthThenServe implements the §4.6/§6 handshake: the client must send an
// `auth` frame carrying a bearer token within authDeadline; the hub runs it
// through C1 (token introspection) and C2 (restaurant binding) before
// registering the connection in its rooms and replying `auth_ok`. Any other
// frame, a bad token, or silence past the deadline closes the socket with
// the matching close code instead of ever joining a room.
func (c *conn) runAuthThenServe(ctx context.Context) {
	defer c.Close(CloseNormal, "connection ended")

	_ = c.ws.SetReadDeadline(time.Now().Add(authDeadline))
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		c.Close(CloseAuthTimeout, "auth frame not received in time")
		return
	}

	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != "auth" {
		c.Close(CloseAuthTimeout, "first frame must be auth")
		return
	}
	var authData authFrameData
	if err := json.Unmarshal(frame.Data, &authData); err != nil {
		c.Close(CloseAuthTimeout, "malformed auth frame")
		return
	}

	verified, err := c.verifier.Verify(ctx, authData.Token)
	if err != nil {
		c.Close(CloseAuthTimeout, "authentication failed")
		return
	}

	tc := tenant.Context{
		UserID:          verified.User.ID,
		Email:           verified.User.Email,
		Role:            string(verified.User.Role),
		IsPlatformOwner: string(verified.User.Role) == "platform_owner",
	}
	if verified.User.RestaurantID.Valid {
		tc.RestaurantID = verified.User.RestaurantID.Bytes
		tc.HasRestaurant = true
	}
	if err := tc.RequireRestaurant(c.restaurantID); err != nil {
		c.Close(CloseForbidden, "restaurant mismatch")
		return
	}

	c.userID = verified.User.ID
	c.topics = defaultTopics(c.kind)
	if err := c.hub.register(c); err != nil {
		return
	}

	c.ws.SetReadLimit(outboundLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	logger.Info("realtime connection authenticated",
		zap.String("restaurant_id", c.restaurantID.String()), zap.String("user_id", c.userID.String()),
		zap.String("kind", string(c.kind)), zap.String("remote_ip", c.remoteIP))

	go c.pingLoop()
	c.send(envelope{Type: "auth_ok"})
	c.serve()
}

// register applies the connection caps and joins c's rooms. Must only be
// called once, after authentication succeeds.
func (h *Hub) register(c *conn) error {
	h.mu.Lock()
	if h.connsByIP[c.remoteIP] >= maxConnsPerIP {
		h.mu.Unlock()
		return closeWith(c.ws, CloseRateLimited, "too many connections from this address")
	}
	if len(h.users[c.userID]) >= maxConnsPerUser {
		h.mu.Unlock()
		return closeWith(c.ws, CloseRateLimited, "too many connections for this user")
	}

	if h.restaurants[c.restaurantID] == nil {
		h.restaurants[c.restaurantID] = make(map[*conn]struct{})
	}
	h.restaurants[c.restaurantID][c] = struct{}{}
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*conn]struct{})
	}
	h.users[c.userID][c] = struct{}{}
	h.connsByIP[c.remoteIP]++
	c.registered = true
	h.mu.Unlock()
	return nil
}

func defaultTopics(kind ConnKind) map[string]struct{} {
	switch kind {
	case ConnKitchen:
		return map[string]struct{}{"order.confirmed": {}, "order.status_changed": {}, "order.cancelled": {}}
	case ConnManagement:
		return map[string]struct{}{"order.confirmed": {}, "order.status_changed": {}, "order.cancelled": {},
			"payment.captured": {}, "payment.refunded": {}}
	default: // ConnPOS
		return map[string]struct{}{"order.status_changed": {}, "payment.captured": {}, "payment.refunded": {}}
	}
}

// Unregister removes c from every room it was part of. Safe to call more
// than once, and a no-op for a connection that never finished authenticating.
func (h *Hub) Unregister(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !c.registered {
		return
	}
	if room, ok := h.restaurants[c.restaurantID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.restaurants, c.restaurantID)
		}
	}
	if room, ok := h.users[c.userID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.users, c.userID)
		}
	}
	h.connsByIP[c.remoteIP]--
	if h.connsByIP[c.remoteIP] <= 0 {
		delete(h.connsByIP, c.remoteIP)
	}
	c.registered = false
}

// Publish implements orders.Publisher: it fans event out to every
// connection in restaurant:{id} subscribed to event.Topic (§4.6).
func (h *Hub) Publish(event orders.Event) {
	h.mu.RLock()
	room := h.restaurants[event.RestaurantID]
	targets := make([]*conn, 0, len(room))
	for c := range room {
		if c.subscribed(event.Topic) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	msg := envelope{Type: "event", Data: map[string]any{"topic": event.Topic, "payload": event.Data}}
	for _, c := range targets {
		c.send(msg)
	}
}

func (c *conn) subscribed(topic string) bool {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}

func (c *conn) addTopics(topics []string) {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	for _, t := range topics {
		if _, ok := allowedTopics[t]; ok {
			c.topics[t] = struct{}{}
		}
	}
}

func (c *conn) removeTopics(topics []string) {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	for _, t := range topics {
		delete(c.topics, t)
	}
}

// send writes msg synchronously under a 5-second write deadline; a write that
// fails or times out closes the connection with CloseBackpressure. Nothing is
// queued and outbound bytes are not counted, so no 1 MiB outbound buffer
// limit is applied here.
func (c *conn) send(msg envelope) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.ws.WriteJSON(msg); err != nil {
		logger.Warn("realtime send failed, closing connection", zap.Error(err))
		c.closeLocked(CloseBackpressure, "send backpressure exceeded")
	}
}

func (c *conn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.sendMu.Lock()
		if c.closed {
			c.sendMu.Unlock()
			return
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err := c.ws.WriteMessage(websocket.PingMessage, nil)
		c.sendMu.Unlock()
		if err != nil {
			c.Close(CloseNormal, "ping failed")
			return
		}
	}
}

// Close sends a close frame with code and reason, then releases c from the
// hub. Idempotent.
func (c *conn) Close(code int, reason string) {
	c.sendMu.Lock()
	c.closeLocked(code, reason)
	c.sendMu.Unlock()
	c.hub.Unregister(c)
}

func (c *conn) closeLocked(code int, reason string) {
	if c.closed {
		return
	}
	c.closed = true
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
}

func closeWith(ws *websocket.Conn, code int, reason string) error {
	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = ws.Close()
	return websocket.CloseError{Code: code, Text: reason}
}

// serve reads authenticated client frames until the connection closes or its
// own per-connection rate limit is exceeded (§4.6: 20 msg/s per connection,
// not per user — a user with several concurrent connections gets one bucket
// each, keyed by connID).
func (c *conn) serve() {
	for {
		if !c.hub.limiters.Allow(c.connID) {
			c.Close(CloseRateLimited, "message rate exceeded")
			return
		}
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.send(envelope{Type: "error", Data: map[string]string{"message": "malformed frame"}})
			continue
		}

		switch frame.Type {
		case "ping":
			c.send(envelope{Type: "pong"})
		case "subscribe":
			var d topicFrameData
			if err := json.Unmarshal(frame.Data, &d); err != nil {
				c.send(envelope{Type: "error", Data: map[string]string{"message": "malformed subscribe frame"}})
				continue
			}
			c.addTopics(d.Topics)
		case "unsubscribe":
			var d topicFrameData
			if err := json.Unmarshal(frame.Data, &d); err != nil {
				c.send(envelope{Type: "error", Data: map[string]string{"message": "malformed unsubscribe frame"}})
				continue
			}
			c.removeTopics(d.Topics)
		default:
			c.send(envelope{Type: "error", Data: map[string]string{"message": "unknown frame type"}})
		}
	}
}
