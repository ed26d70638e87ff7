package google

import (
	"context"
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

const candidateJSON = `{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]},"finishReason":"STOP"}],"usageMetadata":{"totalTokenCount":42}}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) llm.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := llm.GetProvider("google", map[string]string{
		"api_key":       "test-key",
		"default_model": "gemini-2.5-flash",
		"base_url":      srv.URL + "/",
		"timeout":       "5s",
	})
	require.NoError(t, err)
	return p
}

func TestInitialize_RequiresKey(t *testing.T) {
	_, err := llm.GetProvider("google", map[string]string{})
	assert.Error(t, err)
}

func TestCompleteText(t *testing.T) {
	var gotPath string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, candidateJSON, "A|||B|||C")
	})

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi", Model: "gemini-2.0-flash"})
	require.NoError(t, err)
	assert.Equal(t, "A|||B|||C", resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "gemini-2.0-flash", resp.ModelName)
	assert.Contains(t, gotPath, "gemini-2.0-flash:generateContent")
}

func TestCompleteText_StatusError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	})

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)

	terr := llm.AsTransportError(err, "")
	assert.Equal(t, models.TransportHTTPStatus, terr.Kind)
	assert.Equal(t, 429, terr.StatusCode)
	assert.Equal(t, "quota exceeded", terr.Message)
	assert.Equal(t, "gemini-2.5-flash", terr.Model)
	assert.True(t, llm.ShouldFallback(terr))
}

func TestStreamCompletion(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, ":streamGenerateContent"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"SECTION 1", "|||", "rest"} {
			fmt.Fprintf(w, "data: "+candidateJSON+"\n\n", part)
		}
	})

	ch, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)

	var text strings.Builder
	var last llm.StreamResponse
	for chunk := range ch {
		text.WriteString(chunk.Text)
		last = chunk
	}
	assert.Equal(t, "SECTION 1|||rest", text.String())
	assert.True(t, last.Done)
	assert.Nil(t, last.Err)
}
