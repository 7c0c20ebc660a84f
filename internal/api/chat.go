package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"character-chat/internal/models"
	"character-chat/internal/narrator"
)

// ChatHandler exposes the turn orchestrator as a stateless endpoint: the
// caller supplies personalities and history and receives the structured
// narrator turn, without the server-side store being involved.
type ChatHandler struct {
	turns  *narrator.Service
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(turns *narrator.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		turns:  turns,
		logger: logger,
	}
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Message             string                `json:"message"`
	Personalities       []models.Personality  `json:"personalities"`
	ConversationHistory []models.Message      `json:"conversationHistory"`
	APIConfig           models.ProviderConfig `json:"apiConfig"`
}

// ChatResponse is the response body for POST /api/chat.
type ChatResponse struct {
	Success          bool                 `json:"success"`
	NarratorResponse *models.NarratorTurn `json:"narratorResponse"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// HandleChat handles POST /api/chat.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if req.Message == "" || len(req.Personalities) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Message and personalities are required"})
		return
	}

	h.logger.Info("processing turn",
		zap.Int("personalities", len(req.Personalities)),
		zap.Int("history_length", len(req.ConversationHistory)))

	turn, err := h.turns.ProcessTurn(r.Context(), req.Message, req.Personalities, req.ConversationHistory, req.APIConfig)
	if err != nil {
		h.logger.Error("turn processing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to generate response",
			Details: err.Error(),
		})
		return
	}

	h.logger.Info("turn processed",
		zap.Int("character_turns", len(turn.CharacterTurns)),
		zap.Bool("opening_narration", turn.OpeningNarration != ""))

	writeJSON(w, http.StatusOK, ChatResponse{
		Success:          true,
		NarratorResponse: turn,
	})
}
