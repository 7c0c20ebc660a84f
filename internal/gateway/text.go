package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"character-chat/internal/models"
)

// Message roles understood by the text gateway.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TextResult is the normalized output of a successful text generation.
type TextResult struct {
	Content  string
	Provider string
	Model    string
}

// TextGateway tries an ordered list of completion endpoints until one
// returns usable text.
type TextGateway struct {
	endpoints []Endpoint
	client    *http.Client
	observer  Observer
}

// TextOption configures a TextGateway.
type TextOption func(*TextGateway)

// WithTextHTTPClient sets a custom HTTP client.
func WithTextHTTPClient(client *http.Client) TextOption {
	return func(g *TextGateway) {
		g.client = client
	}
}

// WithTextObserver sets the observer receiving endpoint events.
func WithTextObserver(observer Observer) TextOption {
	return func(g *TextGateway) {
		g.observer = observer
	}
}

// NewTextGateway creates a text gateway over the given endpoint chain.
func NewTextGateway(endpoints []Endpoint, opts ...TextOption) *TextGateway {
	g := &TextGateway{
		endpoints: endpoints,
		// Per-request deadlines are applied via context, not the client.
		client:   &http.Client{},
		observer: NopObserver{},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate tries each endpoint in order and returns the first usable text.
// It fails only when every endpoint has failed, wrapping the last error in
// ErrAllProvidersFailed. The gateway never fabricates placeholder content.
func (g *TextGateway) Generate(ctx context.Context, messages []Message, cfg models.ProviderConfig) (*TextResult, error) {
	var lastErr error

	for _, ep := range g.chain(cfg) {
		g.observer.EndpointAttempted(KindText, ep.Name)

		content, err := g.tryEndpoint(ctx, ep, messages, cfg)
		if err != nil {
			g.observer.EndpointFailed(KindText, ep.Name, err)
			lastErr = err
			continue
		}

		g.observer.EndpointSucceeded(KindText, ep.Name, len(content))
		return &TextResult{
			Content:  content,
			Provider: ep.Name,
			Model:    ep.Model,
		}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoints configured")
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

// chain prepends the user's custom endpoint when a base URL is configured.
func (g *TextGateway) chain(cfg models.ProviderConfig) []Endpoint {
	if cfg.BaseURL == "" {
		return g.endpoints
	}

	model := cfg.TextModel
	if model == "" {
		model = defaultCustomTextModel
	}

	custom := Endpoint{
		Name:  CustomEndpointName,
		URL:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		Model: model,
	}
	return append([]Endpoint{custom}, g.endpoints...)
}

func (g *TextGateway) tryEndpoint(ctx context.Context, ep Endpoint, messages []Message, cfg models.ProviderConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, textTimeout)
	defer cancel()

	// The endpoints in this chain are single-turn-prompt oriented, so the
	// multi-turn context is linearized into one user message.
	payload := map[string]any{
		"messages":   []Message{{Role: RoleUser, Content: flatten(messages)}},
		"model":      ep.Model,
		"max_tokens": maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.Name == CustomEndpointName && cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{
			Endpoint:   ep.Name,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), 150),
		}
	}

	content, err := decodeTextBody(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return "", err
	}

	content = strings.TrimSpace(content)
	if len(content) < minContentLength {
		return "", fmt.Errorf("empty or implausibly short response (%d chars)", len(content))
	}

	return content, nil
}

// flatten linearizes role-tagged messages into a single prompt: system
// content first, then user/assistant content in order.
func flatten(messages []Message) string {
	var b strings.Builder

	for _, m := range messages {
		if m.Role == RoleSystem {
			b.WriteString(m.Content)
			b.WriteString("\n\n")
		}
	}

	var rest []string
	for _, m := range messages {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			rest = append(rest, m.Content)
		}
	}
	b.WriteString(strings.Join(rest, "\n"))

	return b.String()
}

// ModelInfo is one entry of an OpenAI-compatible /models listing.
type ModelInfo struct {
	ID string `json:"id"`
}

const modelsTimeout = 8 * time.Second

// ListModels queries the /models listing of an OpenAI-compatible base URL.
// Used to validate a custom endpoint from the settings surface.
func (g *TextGateway) ListModels(ctx context.Context, baseURL string) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, modelsTimeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			Endpoint:   CustomEndpointName,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), 150),
		}
	}

	var listing struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode models listing: %w", err)
	}

	return listing.Data, nil
}
