package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"character-chat/internal/models"
)

func writeTextBody(w http.ResponseWriter, content string) {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func TestTextGenerate_FallsThroughChainInOrder(t *testing.T) {
	var calls []string

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "first")
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	alsoFailing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "second")
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer alsoFailing.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "third")
		writeTextBody(w, "a perfectly reasonable reply")
	}))
	defer working.Close()

	g := NewTextGateway([]Endpoint{
		{Name: "first", URL: failing.URL},
		{Name: "second", URL: alsoFailing.URL},
		{Name: "third", URL: working.URL, Model: "test-model"},
	})

	result, err := g.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hello"},
	}, models.ProviderConfig{})
	require.NoError(t, err)

	assert.Equal(t, "a perfectly reasonable reply", result.Content)
	assert.Equal(t, "third", result.Provider)
	assert.Equal(t, "test-model", result.Model)
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestTextGenerate_StopsAtFirstSuccess(t *testing.T) {
	var secondCalled bool

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTextBody(w, "first endpoint wins this round")
	}))
	defer working.Close()

	neverReached := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondCalled = true
	}))
	defer neverReached.Close()

	g := NewTextGateway([]Endpoint{
		{Name: "first", URL: working.URL},
		{Name: "second", URL: neverReached.URL},
	})

	result, err := g.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hello"},
	}, models.ProviderConfig{})
	require.NoError(t, err)

	assert.Equal(t, "first", result.Provider)
	assert.False(t, secondCalled, "later endpoints should not be tried after a success")
}

func TestTextGenerate_AllFailed(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer failing.Close()

	g := NewTextGateway([]Endpoint{
		{Name: "only", URL: failing.URL},
	})

	_, err := g.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hello"},
	}, models.ProviderConfig{})
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrAllProvidersFailed))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestTextGenerate_CustomEndpointTriedFirst(t *testing.T) {
	var gotAuth string
	custom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var payload struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "my-model", payload.Model)

		writeTextBody(w, "the custom endpoint answers")
	}))
	defer custom.Close()

	var defaultCalled bool
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultCalled = true
	}))
	defer fallback.Close()

	g := NewTextGateway([]Endpoint{
		{Name: "fallback", URL: fallback.URL},
	})

	result, err := g.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hello"},
	}, models.ProviderConfig{
		BaseURL:   custom.URL + "/v1/",
		APIKey:    "sk-secret",
		TextModel: "my-model",
	})
	require.NoError(t, err)

	assert.Equal(t, CustomEndpointName, result.Provider)
	assert.Equal(t, "Bearer sk-secret", gotAuth)
	assert.False(t, defaultCalled, "fallback chain should not run when the custom endpoint succeeds")
}

func TestTextGenerate_CustomEndpointFailureFallsBack(t *testing.T) {
	custom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Built-in endpoints never see the user's key.
		assert.Empty(t, r.Header.Get("Authorization"))
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer custom.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeTextBody(w, "the fallback chain still works")
	}))
	defer fallback.Close()

	g := NewTextGateway([]Endpoint{
		{Name: "fallback", URL: fallback.URL},
	})

	result, err := g.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hello"},
	}, models.ProviderConfig{BaseURL: custom.URL})
	require.NoError(t, err)

	assert.Equal(t, "fallback", result.Provider)
}

func TestTextGenerate_RejectsImplausiblyShortContent(t *testing.T) {
	for _, content := range []string{"", "ok", "short"} {
		short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeTextBody(w, content)
		}))

		g := NewTextGateway([]Endpoint{{Name: "short", URL: short.URL}})

		_, err := g.Generate(context.Background(), []Message{
			{Role: RoleUser, Content: "hello"},
		}, models.ProviderConfig{})

		assert.Error(t, err, "content %q should be rejected", content)
		assert.True(t, errors.Is(err, ErrAllProvidersFailed))
		short.Close()
	}
}

func TestTextGenerate_NoEndpoints(t *testing.T) {
	g := NewTextGateway(nil)

	_, err := g.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hello"},
	}, models.ProviderConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllProvidersFailed))
}

func TestFlatten_SystemFirstThenConversation(t *testing.T) {
	got := flatten([]Message{
		{Role: RoleUser, Content: "earlier question"},
		{Role: RoleSystem, Content: "you are a pirate"},
		{Role: RoleAssistant, Content: "arr"},
		{Role: RoleUser, Content: "latest question"},
	})

	assert.Equal(t, "you are a pirate\n\nearlier question\narr\nlatest question", got)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"gpt-4o-mini"},{"id":"gpt-4o"}]}`))
	}))
	defer srv.Close()

	g := NewTextGateway(nil)

	listing, err := g.ListModels(context.Background(), srv.URL+"/v1")
	require.NoError(t, err)
	require.Len(t, listing, 2)
	assert.Equal(t, "gpt-4o-mini", listing[0].ID)
}

func TestListModels_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewTextGateway(nil)

	_, err := g.ListModels(context.Background(), srv.URL)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
