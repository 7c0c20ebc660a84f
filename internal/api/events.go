package api

import (
	"net/http"

	"go.uber.org/zap"
)

// ChatEventsHandler serves the SSE stream for a chat.
type ChatEventsHandler struct {
	broadcaster *EventBroadcaster
	logger      *zap.Logger
}

// NewChatEventsHandler creates a new SSE handler.
func NewChatEventsHandler(broadcaster *EventBroadcaster, logger *zap.Logger) *ChatEventsHandler {
	return &ChatEventsHandler{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// HandleEvents handles GET /api/chats/{id}/events.
func (h *ChatEventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("id")
	if chatID == "" {
		http.Error(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	// Disable proxy buffering so events reach the client as they happen.
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	eventCh := h.broadcaster.Subscribe(chatID)
	defer h.broadcaster.Unsubscribe(chatID, eventCh)

	if _, err := w.Write([]byte("event: connected\ndata: {}\n\n")); err != nil {
		h.logger.Warn("failed to send connected event", zap.Error(err))
		return
	}
	flusher.Flush()

	h.logger.Info("sse client connected", zap.String("chat_id", chatID))

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("sse client disconnected", zap.String("chat_id", chatID))
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			data, err := FormatSSE(event)
			if err != nil {
				h.logger.Warn("failed to format sse event", zap.Error(err))
				continue
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
