package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"character-chat/internal/models"
)

// ImageResult is the normalized output of a successful image generation.
// URL either points at a returned asset or, for direct endpoints, at a URL
// that renders the image on fetch.
type ImageResult struct {
	URL      string
	Provider string
	Model    string
}

// ImageGateway tries an ordered list of image backends until one yields a
// usable image URL. Direct endpoints synthesize the URL locally and cannot
// fail, which makes them the most reliable link of the chain.
type ImageGateway struct {
	endpoints []Endpoint
	client    *http.Client
	observer  Observer
	width     int
	height    int
	now       func() time.Time
}

// ImageOption configures an ImageGateway.
type ImageOption func(*ImageGateway)

// WithImageHTTPClient sets a custom HTTP client.
func WithImageHTTPClient(client *http.Client) ImageOption {
	return func(g *ImageGateway) {
		g.client = client
	}
}

// WithImageObserver sets the observer receiving endpoint events.
func WithImageObserver(observer Observer) ImageOption {
	return func(g *ImageGateway) {
		g.observer = observer
	}
}

// WithImageSize overrides the default 1024x1024 output dimensions.
func WithImageSize(width, height int) ImageOption {
	return func(g *ImageGateway) {
		g.width = width
		g.height = height
	}
}

// WithImageClock substitutes the time source used for direct-URL seeds.
func WithImageClock(now func() time.Time) ImageOption {
	return func(g *ImageGateway) {
		g.now = now
	}
}

// NewImageGateway creates an image gateway over the given endpoint chain.
func NewImageGateway(endpoints []Endpoint, opts ...ImageOption) *ImageGateway {
	g := &ImageGateway{
		endpoints: endpoints,
		client:    &http.Client{},
		observer:  NopObserver{},
		width:     1024,
		height:    1024,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate resolves the prompt to an image URL through the fallback chain,
// with the same ordering and failure semantics as the text gateway.
func (g *ImageGateway) Generate(ctx context.Context, prompt string, cfg models.ProviderConfig) (*ImageResult, error) {
	var lastErr error

	for _, ep := range g.chain(cfg) {
		g.observer.EndpointAttempted(KindImage, ep.Name)

		if ep.Direct {
			result := g.directResult(ep, prompt)
			g.observer.EndpointSucceeded(KindImage, ep.Name, len(result.URL))
			return result, nil
		}

		imageURL, model, err := g.tryEndpoint(ctx, ep, prompt, cfg)
		if err != nil {
			g.observer.EndpointFailed(KindImage, ep.Name, err)
			lastErr = err
			continue
		}

		g.observer.EndpointSucceeded(KindImage, ep.Name, len(imageURL))
		return &ImageResult{
			URL:      imageURL,
			Provider: ep.Name,
			Model:    model,
		}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoints configured")
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

func (g *ImageGateway) chain(cfg models.ProviderConfig) []Endpoint {
	if cfg.BaseURL == "" {
		return g.endpoints
	}

	model := cfg.ImageModel
	if model == "" {
		model = defaultImageModel
	}

	custom := Endpoint{
		Name:  CustomEndpointName,
		URL:   strings.TrimRight(cfg.BaseURL, "/") + "/images/generations",
		Model: model,
	}
	return append([]Endpoint{custom}, g.endpoints...)
}

// directResult builds the image URL by template substitution. No request is
// made; the downstream service renders the image when the URL is fetched.
func (g *ImageGateway) directResult(ep Endpoint, prompt string) *ImageResult {
	model := ep.Model
	if model == "" {
		model = defaultImageModel
	}

	imageURL := fmt.Sprintf("%s/%s?width=%d&height=%d&nologo=true&model=%s&seed=%d",
		strings.TrimRight(ep.URL, "/"),
		url.PathEscape(prompt),
		g.width, g.height,
		model,
		g.now().UnixMilli())

	return &ImageResult{
		URL:      imageURL,
		Provider: ep.Name,
		Model:    model,
	}
}

func (g *ImageGateway) tryEndpoint(ctx context.Context, ep Endpoint, prompt string, cfg models.ProviderConfig) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, imageTimeout)
	defer cancel()

	model := ep.Model
	if model == "" {
		model = defaultImageModel
	}

	payload := map[string]any{
		"model":           model,
		"prompt":          prompt,
		"n":               1,
		"size":            fmt.Sprintf("%dx%d", g.width, g.height),
		"response_format": "url",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.Name == CustomEndpointName && cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", &APIError{
			Endpoint:   ep.Name,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), 150),
		}
	}

	var result struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return "", "", fmt.Errorf("invalid image response shape: %s", truncate(string(raw), 200))
	}

	return result.Data[0].URL, model, nil
}
