package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"character-chat/internal/db"
	"character-chat/internal/gateway"
	"character-chat/internal/models"
)

func setupChatStore(t *testing.T) (*ChatStoreHandler, *db.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "api_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	database, err := db.NewDB(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	images := gateway.NewImageGateway([]gateway.Endpoint{
		{Name: "direct", URL: "https://images.example.com/prompt", Direct: true},
	})

	h := NewChatStoreHandler(
		database,
		newTestTurnService(cannedGenerator{content: "A reply long enough to pass."}),
		images,
		NewEventBroadcaster(nil),
		zap.NewNop(),
	)

	cleanup := func() {
		database.Close()
		os.Remove(tmpFile.Name())
	}
	return h, database, cleanup
}

func TestCreateChat_Validation(t *testing.T) {
	h, database, cleanup := setupChatStore(t)
	defer cleanup()

	p, err := database.CreatePersonality(models.Personality{Name: "Alice", Personality: "cheerful"})
	if err != nil {
		t.Fatalf("failed to create personality: %v", err)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "individual without personality",
			body: `{"type":"individual","personalityIds":[]}`,
			want: http.StatusBadRequest,
		},
		{
			name: "group with one personality",
			body: `{"type":"group","personalityIds":["` + p.ID + `"]}`,
			want: http.StatusBadRequest,
		},
		{
			name: "unknown type",
			body: `{"type":"broadcast","personalityIds":["` + p.ID + `"]}`,
			want: http.StatusBadRequest,
		},
		{
			name: "unknown personality",
			body: `{"type":"individual","personalityIds":["missing"]}`,
			want: http.StatusBadRequest,
		},
		{
			name: "valid individual",
			body: `{"type":"individual","personalityIds":["` + p.ID + `"]}`,
			want: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Create(w, req)

			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateChat_DefaultsNameToFirstPersonality(t *testing.T) {
	h, database, cleanup := setupChatStore(t)
	defer cleanup()

	p, err := database.CreatePersonality(models.Personality{Name: "Alice", Personality: "cheerful"})
	if err != nil {
		t.Fatalf("failed to create personality: %v", err)
	}

	body := `{"type":"individual","personalityIds":["` + p.ID + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}

	var chat models.Chat
	if err := json.NewDecoder(w.Body).Decode(&chat); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if chat.Name != "Alice" {
		t.Errorf("expected chat name 'Alice', got '%s'", chat.Name)
	}
}

func TestSendMessage_ChatNotFound(t *testing.T) {
	h, _, cleanup := setupChatStore(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/chats/missing/messages",
		strings.NewReader(`{"message":"hello"}`))
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()
	h.SendMessage(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestSendMessage_PersistsFullTurn(t *testing.T) {
	h, database, cleanup := setupChatStore(t)
	defer cleanup()

	p, err := database.CreatePersonality(models.Personality{Name: "Alice", Personality: "cheerful"})
	if err != nil {
		t.Fatalf("failed to create personality: %v", err)
	}
	chat, err := database.CreateChat(models.ChatTypeIndividual, "Alice", []string{p.ID})
	if err != nil {
		t.Fatalf("failed to create chat: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chats/"+chat.ID+"/messages",
		strings.NewReader(`{"message":"hello Alice"}`))
	req.SetPathValue("id", chat.ID)
	w := httptest.NewRecorder()
	h.SendMessage(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp SendMessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Messages) != 2 {
		t.Fatalf("expected 2 messages (user + reply), got %d", len(resp.Messages))
	}
	if resp.Messages[0].SenderID != models.SenderUser {
		t.Errorf("expected first message from user, got '%s'", resp.Messages[0].SenderID)
	}
	if resp.Messages[0].Content != "hello Alice" {
		t.Errorf("user message content mismatch: %s", resp.Messages[0].Content)
	}

	reply := resp.Messages[1]
	if reply.SenderID != p.ID || reply.SenderName != "Alice" {
		t.Errorf("expected reply from Alice, got %s/%s", reply.SenderID, reply.SenderName)
	}
	if reply.Content != "A reply long enough to pass." {
		t.Errorf("unexpected reply content: %s", reply.Content)
	}
	if len(reply.Images) != 1 || !strings.HasPrefix(reply.Images[0], "https://images.example.com/prompt/") {
		t.Errorf("expected a generated scene image URL, got %v", reply.Images)
	}

	// Everything must be in the store as well.
	stored, err := database.GetMessages(chat.ID)
	if err != nil {
		t.Fatalf("failed to get messages: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("expected 2 stored messages, got %d", len(stored))
	}
}

func TestSendMessage_EmptyMessage(t *testing.T) {
	h, _, cleanup := setupChatStore(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/chats/any/messages",
		strings.NewReader(`{"message":""}`))
	req.SetPathValue("id", "any")
	w := httptest.NewRecorder()
	h.SendMessage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}
