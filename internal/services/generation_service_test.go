package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Corphon/ViralGen/internal/config"
	apperrors "github.com/Corphon/ViralGen/internal/errors"
	"github.com/Corphon/ViralGen/internal/llm"
	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/protocol"
	"github.com/Corphon/ViralGen/internal/utils"
)

const wellFormed = "SECTION 1: INSTAGRAM\nCap~SEPARATOR~#a #b|||SECTION 2: YOUTUBE SHORTS\nTITLE~SEPARATOR~Desc~SEPARATOR~tag1|||SECTION 3: X (TWITTER)\nTweet!"

type fakeReply struct {
	text string
	err  error
}

// fakeProvider 按模型返回预设结果，并记录调用顺序
type fakeProvider struct {
	mu      sync.Mutex
	replies map[string]fakeReply
	calls   []string
	prompts []string
}

func (f *fakeProvider) Initialize(map[string]string) error { return nil }
func (f *fakeProvider) GetName() string                    { return "fake" }
func (f *fakeProvider) GetSupportedModels() []string       { return nil }

func (f *fakeProvider) reply(req llm.CompletionRequest) fakeReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Model)
	f.prompts = append(f.prompts, req.Prompt)
	return f.replies[req.Model]
}

func (f *fakeProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	r := f.reply(req)
	if r.err != nil {
		return nil, r.err
	}
	return &llm.CompletionResponse{Text: r.text, ModelName: req.Model, TokensUsed: 3}, nil
}

func (f *fakeProvider) StreamCompletion(_ context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	r := f.reply(req)
	if r.err != nil {
		return nil, r.err
	}
	ch := make(chan llm.StreamResponse, 8)
	for _, part := range strings.SplitAfter(r.text, "|||") {
		ch <- llm.StreamResponse{Text: part}
	}
	ch <- llm.StreamResponse{Done: true}
	close(ch)
	return ch, nil
}

type fixture struct {
	svc      *GenerationService
	provider *fakeProvider
	metrics  *utils.MetricsCollector
}

func newFixture(t *testing.T, replies map[string]fakeReply, modelList ...string) fixture {
	t.Helper()
	logger := utils.NewLogger(zapcore.AddSync(io.Discard), utils.ERROR)
	mc := utils.NewMetricsCollector()
	gm := utils.NewGenerationMetrics(mc, logger)

	cfg := &config.Config{LLMProvider: "fake", Model: modelList[0], FallbackModels: modelList[1:]}
	llmSvc := NewLLMService(cfg, gm, logger)
	require.False(t, llmSvc.IsReady())

	fp := &fakeProvider{replies: replies}
	llmSvc.UpdateProvider("fake", fp, modelList)

	return fixture{
		svc:      NewGenerationService(llmSvc, protocol.DefaultGrammar(), gm, logger),
		provider: fp,
		metrics:  mc,
	}
}

func mustRequest(t *testing.T) models.GenerationRequest {
	t.Helper()
	req, err := models.NewGenerationRequest("Budget Travel Hacks", "Lifestyle", "Funny")
	require.NoError(t, err)
	return req
}

func httpErr(status int, body string) error {
	return &models.TransportError{Kind: models.TransportHTTPStatus, StatusCode: status, Body: body}
}

func TestGenerate_Success(t *testing.T) {
	f := newFixture(t, map[string]fakeReply{"m1": {text: wellFormed}}, "m1", "m2")

	out, err := f.svc.Generate(context.Background(), mustRequest(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"m1"}, f.provider.calls)
	assert.Contains(t, f.provider.prompts[0], "Topic: Budget Travel Hacks")
	assert.Equal(t, "m1", out.Model)
	assert.Equal(t, "fake", out.Provider)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "Cap", out.Result.Get(models.PlatformInstagram, "caption"))
	assert.Equal(t, "Tweet!", out.Result.Get(models.PlatformXTwitter, "tweet"))
	assert.False(t, out.Report.Degraded())
	assert.Equal(t, int64(1), f.metrics.GetCounterValue("extractions_total"))
	assert.Equal(t, int64(0), f.metrics.GetGauge("generations_in_flight"))
}

func TestGenerate_FallsBackOnRetryableStatus(t *testing.T) {
	f := newFixture(t, map[string]fakeReply{
		"m1": {err: httpErr(404, "model not found")},
		"m2": {err: httpErr(429, "quota")},
		"m3": {text: "A|||B|||C"},
	}, "m1", "m2", "m3")

	out, err := f.svc.Generate(context.Background(), mustRequest(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m2", "m3"}, f.provider.calls)
	assert.Equal(t, "m3", out.Model)
	assert.Equal(t, "A", out.Result.Get(models.PlatformInstagram, "caption"))
	assert.True(t, out.Report.Degraded())
	assert.Equal(t, int64(2), f.metrics.GetCounterValue("llm_model_fallbacks_total"))
}

func TestGenerate_NonRetryableFailureSurfacesVerbatim(t *testing.T) {
	f := newFixture(t, map[string]fakeReply{
		"m1": {err: httpErr(400, "API key not valid")},
		"m2": {text: wellFormed},
	}, "m1", "m2")

	out, err := f.svc.Generate(context.Background(), mustRequest(t))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, []string{"m1"}, f.provider.calls)

	assert.True(t, apperrors.IsTransportError(err))
	assert.Equal(t, "generation API error (400): API key not valid", err.Error())

	var terr *models.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 400, terr.StatusCode)
	assert.Equal(t, "m1", terr.Model)
	assert.Equal(t, int64(0), f.metrics.GetCounterValue("extractions_total"))
}

func TestGenerate_AllModelsFail(t *testing.T) {
	f := newFixture(t, map[string]fakeReply{
		"m1": {err: httpErr(503, "overloaded")},
		"m2": {err: io.ErrUnexpectedEOF},
	}, "m1", "m2")

	_, err := f.svc.Generate(context.Background(), mustRequest(t))
	require.Error(t, err)

	var terr *models.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.TransportConnection, terr.Kind)
	assert.Equal(t, "m2", terr.Model)
	assert.Equal(t, int64(2), f.metrics.GetCounterValue("llm_failures_total"))
}

func TestGenerate_GuardsBeforeCalling(t *testing.T) {
	f := newFixture(t, map[string]fakeReply{"m1": {text: wellFormed}}, "m1")

	_, err := f.svc.Generate(context.Background(), models.GenerationRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))

	assert.ErrorIs(t, err, models.ErrTopicMissing)

	f.svc.LLM().UpdateProvider("fake", nil, nil)
	_, err = f.svc.Generate(context.Background(), mustRequest(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailableError(err))
	assert.ErrorIs(t, err, ErrLLMNotReady)
	assert.NotErrorIs(t, err, ErrAPIKeyMissing)

	assert.Empty(t, f.provider.calls)
}

func TestGenerate_MissingAPIKeyIsValidationError(t *testing.T) {
	logger := utils.NewLogger(zapcore.AddSync(io.Discard), utils.ERROR)
	cfg := &config.Config{LLMProvider: "google", Model: "m1"}
	llmSvc := NewLLMService(cfg, nil, logger)
	require.ErrorIs(t, llmSvc.ReadyErr(), ErrAPIKeyMissing)

	svc := NewGenerationService(llmSvc, protocol.DefaultGrammar(), nil, logger)
	_, err := svc.Generate(context.Background(), mustRequest(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
	assert.ErrorIs(t, err, ErrLLMNotReady)
}

func TestLLMService_UnknownProviderIsUnavailable(t *testing.T) {
	logger := utils.NewLogger(zapcore.AddSync(io.Discard), utils.ERROR)
	cfg := &config.Config{LLMProvider: "no-such-provider", APIKey: "k", Model: "m1"}
	llmSvc := NewLLMService(cfg, nil, logger)

	err := llmSvc.ReadyErr()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMNotReady)
	assert.NotErrorIs(t, err, ErrAPIKeyMissing)

	_, _, err = llmSvc.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrLLMNotReady)
}

func TestGenerate_ProseResponseDegradesWithoutError(t *testing.T) {
	f := newFixture(t, map[string]fakeReply{"m1": {text: "Sorry, I can't help with that."}}, "m1")

	out, err := f.svc.Generate(context.Background(), mustRequest(t))
	require.NoError(t, err)
	assert.False(t, out.Report.OuterDelimiterFound)
	assert.Equal(t, models.SentinelSeeOtherTab, out.Result.Get(models.PlatformYouTubeShorts, "title"))
	assert.Equal(t, int64(1), f.metrics.GetCounterValue("extractions_missing_outer_delimiter"))
}

func TestGenerateStream(t *testing.T) {
	f := newFixture(t, map[string]fakeReply{
		"m1": {err: httpErr(500, "internal")},
		"m2": {text: wellFormed},
	}, "m1", "m2")

	var chunks []string
	out, err := f.svc.GenerateStream(context.Background(), mustRequest(t), func(s string) {
		chunks = append(chunks, s)
	})
	require.NoError(t, err)

	assert.Len(t, chunks, 3)
	assert.Equal(t, wellFormed, strings.Join(chunks, ""))
	assert.Equal(t, "m2", out.Model)
	assert.Equal(t, "TITLE", out.Result.Get(models.PlatformYouTubeShorts, "title"))
}

func TestComposeAndExtract(t *testing.T) {
	f := newFixture(t, nil, "m1")

	prompt := f.svc.ComposePrompt(mustRequest(t))
	assert.Contains(t, prompt, protocol.OuterDelimiter)

	result, report := f.svc.Extract(wellFormed)
	assert.Equal(t, "#a #b", result.Get(models.PlatformInstagram, "hashtags"))
	assert.Equal(t, 3, report.SegmentCount)
	assert.Empty(t, f.provider.calls)
}

func TestGenerate_SavesHistory(t *testing.T) {
	f := newFixture(t, map[string]fakeReply{"m1": {text: wellFormed}}, "m1")
	h := newHistory(t, 0)
	f.svc.SetHistory(h)

	out, err := f.svc.Generate(context.Background(), mustRequest(t))
	require.NoError(t, err)

	saved, err := h.Get(out.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Raw, saved.Raw)
	assert.Equal(t, "Cap", saved.Result.Get(models.PlatformInstagram, "caption"))
}
