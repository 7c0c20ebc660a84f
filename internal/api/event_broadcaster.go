package api

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"character-chat/internal/models"
)

// Event is a single Server-Sent Event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventBroadcaster manages SSE clients per chat and fans events out to them.
// The typing-indicator and typewriter presentation is driven by these events.
type EventBroadcaster struct {
	mu      sync.RWMutex
	clients map[string]map[chan Event]struct{} // chatID -> clients
	logger  *zap.Logger
}

// NewEventBroadcaster creates an event broadcaster.
func NewEventBroadcaster(logger *zap.Logger) *EventBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBroadcaster{
		clients: make(map[string]map[chan Event]struct{}),
		logger:  logger,
	}
}

// Subscribe adds a client receiving the chat's events.
func (b *EventBroadcaster) Subscribe(chatID string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 10)

	if b.clients[chatID] == nil {
		b.clients[chatID] = make(map[chan Event]struct{})
	}
	b.clients[chatID][ch] = struct{}{}

	b.logger.Debug("sse client subscribed",
		zap.String("chat_id", chatID),
		zap.Int("total_clients", len(b.clients[chatID])))

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *EventBroadcaster) Unsubscribe(chatID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[chatID]; ok {
		delete(clients, ch)
		close(ch)
		if len(clients) == 0 {
			delete(b.clients, chatID)
		}
	}

	b.logger.Debug("sse client unsubscribed", zap.String("chat_id", chatID))
}

// Broadcast sends an event to every client watching the chat. Slow clients
// with a full channel are skipped rather than blocking the turn. The read
// lock is held across the send loop so Unsubscribe cannot close a channel
// mid-send; the sends never block, so the hold is brief.
func (b *EventBroadcaster) Broadcast(chatID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.clients[chatID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("sse client channel full, dropping event",
				zap.String("chat_id", chatID),
				zap.String("type", event.Type))
		}
	}
}

// BroadcastMessage broadcasts a newly appended message.
func (b *EventBroadcaster) BroadcastMessage(chatID string, msg *models.Message) {
	b.Broadcast(chatID, Event{Type: "message", Data: msg})
}

// BroadcastTyping broadcasts that a character started or stopped composing.
func (b *EventBroadcaster) BroadcastTyping(chatID, characterID string, typing bool) {
	b.Broadcast(chatID, Event{
		Type: "typing",
		Data: map[string]any{
			"characterId": characterID,
			"typing":      typing,
		},
	})
}

// ClientCount returns the number of clients subscribed to a chat.
func (b *EventBroadcaster) ClientCount(chatID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[chatID])
}

// TotalClientCount returns the number of clients across all chats.
func (b *EventBroadcaster) TotalClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}

// FormatSSE renders an event in SSE wire format.
func FormatSSE(event Event) ([]byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte("event: " + event.Type + "\ndata: " + string(data) + "\n\n"), nil
}
