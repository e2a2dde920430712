package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonlabs/learnd/internal/config"
)

func TestNew_DisabledReturnsNoOp(t *testing.T) {
	client, err := New(config.ClassifierConfig{Provider: "disabled"})
	require.NoError(t, err)
	assert.False(t, client.Available())

	_, err = client.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNew_ProvidersRequireAPIKey(t *testing.T) {
	_, err := New(config.ClassifierConfig{Provider: "anthropic"})
	assert.Error(t, err)

	_, err = New(config.ClassifierConfig{Provider: "openai"})
	assert.Error(t, err)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.ClassifierConfig{Provider: "parrot"})
	assert.Error(t, err)
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "classify this", req.Messages[0].Content)

		resp := map[string]any{
			"content": []map[string]any{{"type": "text", "text": `{"ok":true}`}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := New(config.ClassifierConfig{
		Provider: "anthropic",
		APIKey:   config.Secret("test-key"),
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)
	require.True(t, client.Available())

	out, err := client.Complete(context.Background(), "system prompt", "classify this")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestAnthropicClient_RetriesServerErrors(t *testing.T) {
	// A transient 500 followed by success should be recovered without
	// surfacing an error.
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := map[string]any{
			"content": []map[string]any{{"type": "text", "text": "recovered"}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := New(config.ClassifierConfig{
		Provider: "anthropic",
		APIKey:   config.Secret("test-key"),
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "", "retry me")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 2, attempts)
}

func TestAnthropicClient_BadRequestNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad input"}}`))
	}))
	defer srv.Close()

	client, err := New(config.ClassifierConfig{
		Provider: "anthropic",
		APIKey:   config.Secret("test-key"),
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")
	assert.Equal(t, 1, attempts)
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// System prompt goes in as a system-role message.
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		resp := map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "answer"}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := New(config.ClassifierConfig{
		Provider: "openai",
		APIKey:   config.Secret("test-key"),
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "system prompt", "classify this")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client, err := New(config.ClassifierConfig{
		Provider: "openai",
		APIKey:   config.Secret("test-key"),
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "", "anything")
	assert.Error(t, err)
}
