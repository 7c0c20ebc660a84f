package models

import "time"

// Sender IDs reserved for non-character participants. Any other sender ID
// refers to a personality.
const (
	SenderUser     = "user"
	SenderNarrator = "narrator"
)

// Personality is a user-authored AI character definition. The ID is fixed at
// creation; updates replace the record wholesale.
type Personality struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Avatar        string    `json:"avatar,omitempty"`
	Personality   string    `json:"personality"`
	Traits        []string  `json:"traits,omitempty"`
	Description   string    `json:"description,omitempty"`
	AvatarGallery []string  `json:"avatarGallery,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Message is a single entry in a chat. Messages are append-only; insertion
// order is the authoritative ordering, Timestamp is informational.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Images     []string  `json:"images,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChatType distinguishes one-on-one chats from group chats.
type ChatType string

const (
	ChatTypeIndividual ChatType = "individual"
	ChatTypeGroup      ChatType = "group"
)

// Chat is a conversation with a fixed set of personalities.
type Chat struct {
	ID             string    `json:"id"`
	Type           ChatType  `json:"type"`
	Name           string    `json:"name"`
	PersonalityIDs []string  `json:"personalityIds"`
	Messages       []Message `json:"messages,omitempty"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ProviderConfig carries the user-supplied backend overrides. When BaseURL is
// set, the custom OpenAI-compatible endpoint is tried before the built-in
// fallback chain, with APIKey as its bearer token.
type ProviderConfig struct {
	BaseURL    string `json:"baseUrl,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`
	TextModel  string `json:"textModel,omitempty"`
	ImageModel string `json:"imageModel,omitempty"`
}

// CharacterTurn is one character's contribution to a turn: the spoken reply,
// optional narrator framing, and the prompt for a follow-up image. ImagePrompt
// is always populated, falling back to a synthesized description when prompt
// generation fails.
type CharacterTurn struct {
	CharacterID    string `json:"characterId"`
	CharacterName  string `json:"characterName"`
	Reply          string `json:"response"`
	NarratorBefore string `json:"narratorBefore,omitempty"`
	NarratorAfter  string `json:"narratorAfter,omitempty"`
	ImagePrompt    string `json:"imagePrompt"`
}

// NarratorTurn is the full result of processing one user message. It is a
// transient value object; the caller maps it into persisted messages.
type NarratorTurn struct {
	OpeningNarration string          `json:"narratorVoice,omitempty"`
	CharacterTurns   []CharacterTurn `json:"characterResponses"`
}
