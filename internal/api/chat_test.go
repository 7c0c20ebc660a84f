package api

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"character-chat/internal/gateway"
	"character-chat/internal/models"
	"character-chat/internal/narrator"
)

// cannedGenerator answers every generation call with the same text.
type cannedGenerator struct {
	content string
}

func (g cannedGenerator) Generate(_ context.Context, _ []gateway.Message, _ models.ProviderConfig) (*gateway.TextResult, error) {
	return &gateway.TextResult{Content: g.content, Provider: "canned"}, nil
}

func newTestTurnService(gen narrator.TextGenerator) *narrator.Service {
	cfg := narrator.DefaultConfig()
	cfg.OpeningChance = 0
	cfg.BracketChance = 0
	cfg.CharacterPause = 0
	return narrator.New(gen, cfg, rand.New(rand.NewSource(1)), zap.NewNop())
}

func TestHandleChat_InvalidBody(t *testing.T) {
	h := NewChatHandler(newTestTurnService(cannedGenerator{content: "hello everyone out there"}), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	h.HandleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandleChat_MissingFields(t *testing.T) {
	h := NewChatHandler(newTestTurnService(cannedGenerator{content: "hello everyone out there"}), zap.NewNop())

	for _, body := range []string{
		`{"message":"","personalities":[{"id":"a","name":"Alice","personality":"cheerful"}]}`,
		`{"message":"hi","personalities":[]}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
		w := httptest.NewRecorder()
		h.HandleChat(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected status %d, got %d", body, http.StatusBadRequest, w.Code)
		}
	}
}

func TestHandleChat_Success(t *testing.T) {
	h := NewChatHandler(newTestTurnService(cannedGenerator{content: "A delighted greeting in return!"}), zap.NewNop())

	body := `{
		"message": "hi Alice",
		"personalities": [{"id":"alice-id","name":"Alice","personality":"cheerful"}],
		"conversationHistory": []
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleChat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp struct {
		Success          bool `json:"success"`
		NarratorResponse struct {
			CharacterResponses []struct {
				CharacterID   string `json:"characterId"`
				CharacterName string `json:"characterName"`
				Response      string `json:"response"`
				ImagePrompt   string `json:"imagePrompt"`
			} `json:"characterResponses"`
		} `json:"narratorResponse"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !resp.Success {
		t.Error("expected success=true")
	}
	if len(resp.NarratorResponse.CharacterResponses) != 1 {
		t.Fatalf("expected 1 character response, got %d", len(resp.NarratorResponse.CharacterResponses))
	}
	ct := resp.NarratorResponse.CharacterResponses[0]
	if ct.CharacterName != "Alice" {
		t.Errorf("expected character 'Alice', got '%s'", ct.CharacterName)
	}
	if ct.Response != "A delighted greeting in return!" {
		t.Errorf("unexpected reply: %s", ct.Response)
	}
	if ct.ImagePrompt == "" {
		t.Error("expected a non-empty image prompt")
	}
}

func TestHandleChat_TurnFailure(t *testing.T) {
	h := NewChatHandler(newTestTurnService(cannedGenerator{content: "never used in this test"}), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := `{
		"message": "hi",
		"personalities": [{"id":"alice-id","name":"Alice","personality":"cheerful"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)).WithContext(ctx)
	w := httptest.NewRecorder()
	h.HandleChat(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	var resp struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "Failed to generate response" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
	if resp.Details == "" {
		t.Error("expected error details to be populated")
	}
}
