package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/services"
)

const wellFormed = "SECTION 1: INSTAGRAM\nCap~SEPARATOR~#a #b|||SECTION 2: YOUTUBE SHORTS\nTITLE~SEPARATOR~Desc~SEPARATOR~tag1|||SECTION 3: X (TWITTER)\nTweet!"

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// clearCredentials 避免本机环境变量影响测试
func clearCredentials(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENROUTER_API_KEY", "LLM_API_KEY", "LLM_MODEL", "LLM_FALLBACK_MODELS", "LLM_BASE_URL", "LOG_DIR", "HISTORY_DIR"} {
		t.Setenv(k, "")
	}
}

func TestPromptCommand(t *testing.T) {
	out, _, err := run(t, "", "prompt", "--topic", "Budget Travel Hacks", "--category", "lifestyle", "--vibe", "Funny")
	require.NoError(t, err)
	assert.Contains(t, out, "Topic: Budget Travel Hacks")
	assert.Contains(t, out, "|||")
	assert.Contains(t, out, "~SEPARATOR~")
}

func TestPromptCommand_Validation(t *testing.T) {
	_, _, err := run(t, "", "prompt", "--category", "Tech")
	assert.Error(t, err)

	_, _, err = run(t, "", "prompt", "--topic", "x", "--category", "Knitting")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Knitting")
}

func TestExtractCommand_StdinJSON(t *testing.T) {
	out, _, err := run(t, wellFormed, "extract", "--json")
	require.NoError(t, err)

	var got extractionOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Cap", got.Result.Get(models.PlatformInstagram, "caption"))
	assert.Equal(t, "tag1", got.Result.Get(models.PlatformYouTubeShorts, "tags"))
	assert.Equal(t, "Tweet!", got.Result.Get(models.PlatformXTwitter, "tweet"))
	assert.True(t, got.Report.OuterDelimiterFound)
	require.Len(t, got.Groups, 3)
	assert.Equal(t, models.PlatformInstagram, got.Groups[0].Platform)
}

func TestExtractCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.txt")
	require.NoError(t, os.WriteFile(path, []byte("just some prose"), 0o644))

	out, _, err := run(t, "", "extract", path)
	require.NoError(t, err)
	assert.Contains(t, out, "just some prose")
	assert.Contains(t, out, models.SentinelSeeOtherTab)
	assert.Contains(t, out, models.SentinelNoData)
}

func TestExtractCommand_MissingFile(t *testing.T) {
	_, _, err := run(t, "", "extract", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestOptionsCommand(t *testing.T) {
	out, _, err := run(t, "", "options", "--json")
	require.NoError(t, err)

	var got struct {
		Categories []string `json:"categories"`
		Vibes      []string `json:"vibes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got.Categories, len(models.Categories()))
	assert.Contains(t, got.Vibes, "Aesthetic/Calm")
}

func TestGenerateCommand_MissingCredential(t *testing.T) {
	clearCredentials(t)
	t.Setenv("LLM_PROVIDER", "google")

	_, _, err := run(t, "", "generate", "--topic", "Desk setup tour")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrLLMNotReady)
}

func TestGenerateCommand_OpenRouter(t *testing.T) {
	clearCredentials(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		body, _ := json.Marshal(wellFormed)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"model":"test/model","choices":[{"message":{"content":%s},"finish_reason":"stop"}]}`, body)
	}))
	t.Cleanup(srv.Close)

	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("LLM_BASE_URL", srv.URL+"/")

	out, _, err := run(t, "", "generate", "--json", "--model", "test/model",
		"--topic", "Budget Travel Hacks", "--category", "Lifestyle", "--vibe", "Funny")
	require.NoError(t, err)

	var got generationOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.GenerationResult)
	assert.Equal(t, "test/model", got.Model)
	assert.Equal(t, "openrouter", got.Provider)
	assert.Equal(t, "Cap", got.Result.Get(models.PlatformInstagram, "caption"))
	assert.Len(t, got.Groups, 3)
}

func TestGenerateCommand_SavesHistory(t *testing.T) {
	clearCredentials(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Cap|||Title|||Tweet"}}]}`)
	}))
	t.Cleanup(srv.Close)

	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("LLM_BASE_URL", srv.URL+"/")
	t.Setenv("HISTORY_DIR", t.TempDir())

	out, _, err := run(t, "", "generate", "--json", "--model", "test/model", "--topic", "Desk setup tour")
	require.NoError(t, err)
	var generated generationOutput
	require.NoError(t, json.Unmarshal([]byte(out), &generated))

	out, _, err = run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, generated.ID)
	assert.Contains(t, out, "Desk setup tour")

	out, _, err = run(t, "", "history", generated.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Tweet")
}

func TestHistoryCommand_Disabled(t *testing.T) {
	clearCredentials(t)

	_, _, err := run(t, "", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestGenerateCommand_TransportErrorVerbatim(t *testing.T) {
	clearCredentials(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"API key not valid"}}`)
	}))
	t.Cleanup(srv.Close)

	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("LLM_BASE_URL", srv.URL+"/")

	_, _, err := run(t, "", "generate", "--model", "test/model", "--topic", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Contains(t, err.Error(), "400")
}
