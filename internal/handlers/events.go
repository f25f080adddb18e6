package handlers

import (
	"log"
	"sync"
	"time"

	"deepscout/internal/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// EventsHandler pushes settings change notifications to connected clients so
// other open sessions of the same account can rehydrate.
type EventsHandler struct {
	hub *services.EventsHub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *services.EventsHub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// eventsServerMessage is the wire shape sent to clients
type eventsServerMessage struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Handle is the WebSocket handler for /ws/events
func (h *EventsHandler) Handle(c *websocket.Conn) {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		log.Printf("[EVENTS-WS] Connection rejected: missing or invalid user_id")
		c.WriteJSON(eventsServerMessage{Type: "error"})
		return
	}
	connID := uuid.New().String()

	log.Printf("[EVENTS-WS] Connection opened: %s (user: %s)", connID, userID)

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	// Write mutex serializes event writes and protocol pings
	var writeMu sync.Mutex

	events, unsubscribe := h.hub.Subscribe(userID)

	// Event forwarder
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				writeMu.Lock()
				err := c.WriteJSON(eventsServerMessage{
					Type:      ev.Type,
					AccountID: ev.AccountID,
					Timestamp: ev.Timestamp,
				})
				writeMu.Unlock()
				if err != nil {
					log.Printf("[EVENTS-WS] Write error for %s: %v", connID, err)
					closeDone()
					return
				}
			}
		}
	}()

	// Ping loop keeps idle connections alive through proxies
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := c.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					closeDone()
					return
				}
			case <-done:
				return
			}
		}
	}()

	defer func() {
		closeDone()
		unsubscribe()
		log.Printf("[EVENTS-WS] Connection closed: %s", connID)
	}()

	writeMu.Lock()
	c.WriteJSON(eventsServerMessage{Type: "connected", Timestamp: time.Now().UnixMilli()})
	writeMu.Unlock()

	// Read loop exists to detect disconnects; clients do not send messages
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		select {
		case <-done:
			return
		default:
		}
	}
}
