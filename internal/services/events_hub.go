package services

import (
	"sync"
	"time"
)

// Event is a change notification pushed to connected clients.
type Event struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id"`
	Timestamp int64  `json:"timestamp"`
}

// EventTypeSettingsUpdated signals that the account's settings document
// changed and should be re-hydrated.
const EventTypeSettingsUpdated = "settings_updated"

// EventsHub fans events out to in-process subscribers, keyed by account id.
// Slow subscribers drop events instead of blocking publishers; clients treat
// an event as "re-fetch", so losing one under pressure is harmless.
type EventsHub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
}

// NewEventsHub creates an empty hub.
func NewEventsHub() *EventsHub {
	return &EventsHub{subs: map[string]map[int]chan Event{}}
}

// Subscribe registers for one account's events. The returned function
// unsubscribes and closes the channel.
func (h *EventsHub) Subscribe(accountID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	h.mu.Lock()
	if h.subs[accountID] == nil {
		h.subs[accountID] = map[int]chan Event{}
	}
	id := h.nextID
	h.nextID++
	h.subs[accountID][id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if subs, ok := h.subs[accountID]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.subs, accountID)
			}
		}
		h.mu.Unlock()
	}
}

// Publish delivers an event to the account's subscribers.
func (h *EventsHub) Publish(accountID, eventType string) {
	ev := Event{Type: eventType, AccountID: accountID, Timestamp: time.Now().UnixMilli()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[accountID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
