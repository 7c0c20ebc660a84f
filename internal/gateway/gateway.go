// Package gateway implements ordered fallback chains over interchangeable
// text- and image-generation backends. Endpoints are tried strictly in list
// order until one yields a usable result; a user-configured custom endpoint
// is always tried first. The gateways hold no mutable state across calls and
// are safe for concurrent use.
package gateway

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// CustomEndpointName identifies the user-supplied OpenAI-compatible
	// endpoint prepended to the chain when ProviderConfig.BaseURL is set.
	CustomEndpointName = "custom-base"

	textTimeout = 45 * time.Second
	// Image synthesis is slower than text completion.
	imageTimeout = 90 * time.Second

	// minContentLength guards against providers returning empty-success
	// bodies with a 200 status.
	minContentLength = 10

	maxTokens = 2048

	defaultCustomTextModel = "gpt-4o-mini"
	defaultImageModel      = "flux"
)

// ErrAllProvidersFailed is returned when every endpoint in the chain has been
// tried without success. The last endpoint's error is wrapped alongside it.
var ErrAllProvidersFailed = errors.New("all providers failed")

// Endpoint describes one generation backend. A Direct endpoint builds its
// result URL by template substitution instead of issuing a request.
type Endpoint struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Model  string `yaml:"model,omitempty"`
	Direct bool   `yaml:"direct,omitempty"`
}

// APIError is a non-2xx response from a provider endpoint.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Observer receives structured events about endpoint trials. Implementations
// must be safe for concurrent use.
type Observer interface {
	EndpointAttempted(kind, endpoint string)
	EndpointSucceeded(kind, endpoint string, size int)
	EndpointFailed(kind, endpoint string, err error)
}

// Event kinds passed to Observer methods.
const (
	KindText  = "text"
	KindImage = "image"
)

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) EndpointAttempted(string, string)      {}
func (NopObserver) EndpointSucceeded(string, string, int) {}
func (NopObserver) EndpointFailed(string, string, error)  {}

// ZapObserver emits endpoint events through a zap logger.
type ZapObserver struct {
	Logger *zap.Logger
}

func (o ZapObserver) EndpointAttempted(kind, endpoint string) {
	o.Logger.Debug("endpoint attempted",
		zap.String("kind", kind),
		zap.String("endpoint", endpoint))
}

func (o ZapObserver) EndpointSucceeded(kind, endpoint string, size int) {
	o.Logger.Info("endpoint succeeded",
		zap.String("kind", kind),
		zap.String("endpoint", endpoint),
		zap.Int("size", size))
}

func (o ZapObserver) EndpointFailed(kind, endpoint string, err error) {
	o.Logger.Warn("endpoint failed",
		zap.String("kind", kind),
		zap.String("endpoint", endpoint),
		zap.Error(err))
}

// DefaultTextEndpoints returns the built-in text fallback chain. Order
// encodes the reliability/cost preference and is the trial order.
func DefaultTextEndpoints() []Endpoint {
	return []Endpoint{
		{Name: "pollinations-text", URL: "https://text.pollinations.ai/openai", Model: "openai"},
		{Name: "g4f-pollinations", URL: "https://g4f.dev/api/pollinations.ai/v1/chat/completions", Model: "openai"},
		{Name: "g4f-main", URL: "https://host.g4f.dev/v1/chat/completions", Model: "gpt-4o-mini"},
		{Name: "g4f-groq", URL: "https://g4f.dev/api/groq/v1/chat/completions", Model: "llama-3.1-70b"},
	}
}

// DefaultImageEndpoints returns the built-in image fallback chain. The direct
// URL-template endpoint comes first: it needs no round trip and defers actual
// generation to the downstream service.
func DefaultImageEndpoints() []Endpoint {
	return []Endpoint{
		{Name: "pollinations-direct", URL: "https://image.pollinations.ai/prompt", Direct: true},
		{Name: "g4f-pollinations", URL: "https://g4f.dev/api/pollinations.ai/v1/images/generations", Model: "flux"},
		{Name: "g4f-host", URL: "https://host.g4f.dev/v1/images/generations", Model: "flux"},
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
