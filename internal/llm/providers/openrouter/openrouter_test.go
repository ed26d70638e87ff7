package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/ViralGen/internal/llm"
	"github.com/Corphon/ViralGen/internal/models"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) llm.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := llm.GetProvider("openrouter", map[string]string{
		"api_key":       "or-key",
		"default_model": "google/gemini-2.5-flash",
		"base_url":      srv.URL + "/",
		"timeout":       "5s",
	})
	require.NoError(t, err)
	return p
}

func TestCompleteText(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "google/gemini-2.5-flash", body.Model)
		assert.Equal(t, "user", body.Messages[len(body.Messages)-1].Role)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"google/gemini-2.5-flash","choices":[{"message":{"content":"A|||B|||C"},"finish_reason":"stop"}],"usage":{"total_tokens":7}}`)
	})

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi", Temperature: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "A|||B|||C", resp.Text)
	assert.Equal(t, 7, resp.TokensUsed)
	assert.Equal(t, "OpenRouter", resp.ProviderName)
}

func TestCompleteText_StatusError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	})

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)

	terr := llm.AsTransportError(err, "")
	assert.Equal(t, models.TransportHTTPStatus, terr.Kind)
	assert.Equal(t, 401, terr.StatusCode)
	assert.Equal(t, `{"error":{"message":"bad key"}}`, terr.Body)
	assert.Equal(t, "bad key", terr.Message)
	assert.Equal(t, `generation API error (401): {"error":{"message":"bad key"}}`, terr.Error())
	assert.False(t, llm.ShouldFallback(terr))
}

func TestCompleteText_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := llm.GetProvider("openrouter", map[string]string{"api_key": "k", "base_url": url})
	require.NoError(t, err)

	_, err = p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	terr := llm.AsTransportError(err, "")
	assert.Equal(t, models.TransportConnection, terr.Kind)
	assert.True(t, llm.ShouldFallback(terr))
}

func TestStreamCompletion(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		for _, part := range []string{"A", "|||", "B"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)

	var text strings.Builder
	var last llm.StreamResponse
	for chunk := range ch {
		text.WriteString(chunk.Text)
		last = chunk
	}
	assert.Equal(t, "A|||B", text.String())
	assert.True(t, last.Done)
	assert.Equal(t, "stop", last.FinishReason)
}

func TestStreamCompletion_StatusError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "overloaded")
	})

	_, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	terr := llm.AsTransportError(err, "")
	assert.Equal(t, 503, terr.StatusCode)
	assert.Equal(t, "overloaded", terr.Body)
	assert.Empty(t, terr.Message)
}
