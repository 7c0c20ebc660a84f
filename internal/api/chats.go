package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"character-chat/internal/db"
	"character-chat/internal/gateway"
	"character-chat/internal/models"
	"character-chat/internal/narrator"
)

// ChatStoreHandler handles persisted chat HTTP requests: chat CRUD, message
// history, and the send-message flow that runs a full character turn.
type ChatStoreHandler struct {
	db          *db.DB
	turns       *narrator.Service
	images      *gateway.ImageGateway
	broadcaster *EventBroadcaster
	logger      *zap.Logger
}

// NewChatStoreHandler creates a new chat store handler.
func NewChatStoreHandler(database *db.DB, turns *narrator.Service, images *gateway.ImageGateway, broadcaster *EventBroadcaster, logger *zap.Logger) *ChatStoreHandler {
	return &ChatStoreHandler{
		db:          database,
		turns:       turns,
		images:      images,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// CreateChatRequest represents the request body for creating a chat
type CreateChatRequest struct {
	Type           models.ChatType `json:"type"`
	Name           string          `json:"name"`
	PersonalityIDs []string        `json:"personalityIds"`
}

// Create handles POST /api/chats
func (h *ChatStoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	switch req.Type {
	case models.ChatTypeIndividual:
		if len(req.PersonalityIDs) < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Individual chats need a personality"})
			return
		}
	case models.ChatTypeGroup:
		if len(req.PersonalityIDs) < 2 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Group chats need at least two personalities"})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Chat type must be individual or group"})
		return
	}

	// All referenced personalities must exist.
	personalities, err := h.db.GetPersonalities(req.PersonalityIDs)
	if err != nil {
		h.logger.Error("failed to resolve personalities", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to create chat"})
		return
	}
	if len(personalities) != len(req.PersonalityIDs) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unknown personality ID"})
		return
	}

	name := req.Name
	if name == "" {
		name = personalities[0].Name
	}

	chat, err := h.db.CreateChat(req.Type, name, req.PersonalityIDs)
	if err != nil {
		h.logger.Error("failed to create chat", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to create chat"})
		return
	}

	writeJSON(w, http.StatusCreated, chat)
}

// List handles GET /api/chats
func (h *ChatStoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := h.db.GetAllChats()
	if err != nil {
		h.logger.Error("failed to list chats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get chats"})
		return
	}

	if chats == nil {
		chats = []models.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

// Get handles GET /api/chats/{id}
func (h *ChatStoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	chat, err := h.db.GetChat(r.PathValue("id"))
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Chat not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get chat", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get chat"})
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

// Delete handles DELETE /api/chats/{id}
func (h *ChatStoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.db.GetChat(id); err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Chat not found"})
		return
	} else if err != nil {
		h.logger.Error("failed to get chat", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to delete chat"})
		return
	}

	if err := h.db.DeleteChat(id); err != nil {
		h.logger.Error("failed to delete chat", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to delete chat"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Messages handles GET /api/chats/{id}/messages
func (h *ChatStoreHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.db.GetChat(id); err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Chat not found"})
		return
	} else if err != nil {
		h.logger.Error("failed to get chat", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get messages"})
		return
	}

	messages, err := h.db.GetMessages(id)
	if err != nil {
		h.logger.Error("failed to get messages", zap.String("chat_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get messages"})
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Message   string                `json:"message"`
	APIConfig models.ProviderConfig `json:"apiConfig"`
}

// SendMessageResponse carries every message appended during the turn, in order.
type SendMessageResponse struct {
	Messages []models.Message `json:"messages"`
}

// SendMessage handles POST /api/chats/{id}/messages. It stores the user
// message, runs a full character turn against the chat's personalities, and
// persists the resulting narration, replies and images as chat messages,
// broadcasting each one to SSE subscribers as it lands.
func (h *ChatStoreHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("id")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Message is required"})
		return
	}

	chat, err := h.db.GetChat(chatID)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Chat not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get chat", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to send message"})
		return
	}

	personalities, err := h.db.GetPersonalities(chat.PersonalityIDs)
	if err != nil || len(personalities) == 0 {
		h.logger.Error("failed to resolve chat personalities", zap.String("chat_id", chatID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to send message"})
		return
	}

	// History is captured before the user message lands so the turn sees the
	// conversation exactly as the user did when they typed.
	history, err := h.db.GetMessages(chatID)
	if err != nil {
		h.logger.Error("failed to load history", zap.String("chat_id", chatID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to send message"})
		return
	}

	var appended []models.Message
	persist := func(msg models.Message) *models.Message {
		saved, err := h.db.AppendMessage(chatID, msg)
		if err != nil {
			h.logger.Error("failed to persist message", zap.String("chat_id", chatID), zap.Error(err))
			return nil
		}
		appended = append(appended, *saved)
		h.broadcaster.BroadcastMessage(chatID, saved)
		return saved
	}

	if persist(models.Message{
		SenderID:   models.SenderUser,
		SenderName: "You",
		Content:    req.Message,
	}) == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to send message"})
		return
	}

	turn, err := h.turns.ProcessTurn(r.Context(), req.Message, personalities, history, req.APIConfig)
	if err != nil {
		h.logger.Error("turn failed", zap.String("chat_id", chatID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to generate response",
			Details: err.Error(),
		})
		return
	}

	if turn.OpeningNarration != "" {
		persist(models.Message{
			SenderID:   models.SenderNarrator,
			SenderName: "Narrator",
			Content:    turn.OpeningNarration,
		})
	}

	for _, ct := range turn.CharacterTurns {
		h.broadcaster.BroadcastTyping(chatID, ct.CharacterID, true)

		if ct.NarratorBefore != "" {
			persist(models.Message{
				SenderID:   models.SenderNarrator,
				SenderName: "Narrator",
				Content:    ct.NarratorBefore,
			})
		}

		var images []string
		if ct.ImagePrompt != "" {
			if result, err := h.images.Generate(r.Context(), ct.ImagePrompt, req.APIConfig); err != nil {
				h.logger.Warn("scene image skipped",
					zap.String("chat_id", chatID),
					zap.String("character", ct.CharacterName),
					zap.Error(err))
			} else {
				images = []string{result.URL}
			}
		}

		persist(models.Message{
			SenderID:   ct.CharacterID,
			SenderName: ct.CharacterName,
			Content:    ct.Reply,
			Images:     images,
		})

		if ct.NarratorAfter != "" {
			persist(models.Message{
				SenderID:   models.SenderNarrator,
				SenderName: "Narrator",
				Content:    ct.NarratorAfter,
			})
		}

		h.broadcaster.BroadcastTyping(chatID, ct.CharacterID, false)
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{Messages: appended})
}
