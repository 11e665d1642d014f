package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/auth"
	"github.com/moneypot/verifier/internal/config"
	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/rbac"
)

// allAttempts is the connection bucket for operators watching every attempt.
const allAttempts = "*"

// WSHub pushes attempt lifecycle events. Hunters watch one attempt with
// ?attempt_id=; service tokens (?token=) with read_result see everything.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamAttempts, h.Dispatch)
}

// Dispatch routes one event to the watchers of its attempt and to operators.
func (h *WSHub) Dispatch(event events.Event) {
	// the outcome token is for the relayer, not for browsers
	payload := make(map[string]any, len(event.Payload))
	for k, v := range event.Payload {
		if k != "outcome_token" {
			payload[k] = v
		}
	}
	data, err := json.Marshal(events.Event{Type: event.Type, Payload: payload})
	if err != nil {
		return
	}

	attemptID, _ := payload["attempt_id"].(string)

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.connections[allAttempts]
	if attemptID != "" {
		targets = append(append([]*websocket.Conn{}, targets...), h.connections[attemptID]...)
	}
	for _, conn := range targets {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

func (h *WSHub) Watchers(attemptID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[attemptID])
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	bucket, ok := h.bucketFor(conn)
	if !ok {
		conn.Close()
		return
	}

	h.mu.Lock()
	h.connections[bucket] = append(h.connections[bucket], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[bucket]
		for i, c := range conns {
			if c == conn {
				h.connections[bucket] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[bucket]) == 0 {
			delete(h.connections, bucket)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (h *WSHub) bucketFor(conn *websocket.Conn) (string, bool) {
	if tokenStr := conn.Query("token"); tokenStr != "" {
		claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
		if err != nil || !rbac.HasPermission(claims.Role, rbac.PermReadResult) {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
			return "", false
		}
		return allAttempts, true
	}

	attemptID := conn.Query("attempt_id")
	if attemptID == "" || attemptID == allAttempts {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"attempt_id or token required"}`))
		return "", false
	}
	return attemptID, true
}
