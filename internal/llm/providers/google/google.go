// internal/llm/providers/google/google.go
package google

import (
	"context"
	"errors"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/Corphon/ViralGen/internal/llm"
	"github.com/Corphon/ViralGen/internal/models"
)

func init() {
	llm.Register("google", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"gemini-2.5-flash",
				"gemini-2.5-pro",
				"gemini-2.0-flash",
			},
		}
	})
}

type Provider struct {
	client            *genai.Client
	defaultModel      string
	recommendedModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return errors.New("google_api密钥未提供")
	}

	p.defaultModel = config["default_model"]
	if p.defaultModel == "" {
		p.defaultModel = "gemini-2.5-flash"
	}

	httpClient := &http.Client{}
	if timeout, err := time.ParseDuration(config["timeout"]); err == nil && timeout > 0 {
		httpClient.Timeout = timeout
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL := config["base_url"]; baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return err
	}
	p.client = client
	return nil
}

func (p *Provider) GetName() string {
	return "google gemini"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

func (p *Provider) generateConfig(req llm.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	return cfg
}

func (p *Provider) model(req llm.CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := p.model(req)
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, p.generateConfig(req))
	if err != nil {
		return nil, mapError(err, model)
	}
	if len(resp.Candidates) == 0 {
		return nil, &models.TransportError{Kind: models.TransportEmpty, Body: "google gemini未返回任何结果", Model: model}
	}

	out := &llm.CompletionResponse{
		Text:         resp.Text(),
		FinishReason: string(resp.Candidates[0].FinishReason),
		ModelName:    model,
		ProviderName: p.GetName(),
	}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// StreamCompletion 实现流式响应。首个分片前的错误直接返回，之后的错误通过通道送出。
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	model := p.model(req)
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	respChan := make(chan llm.StreamResponse)
	go func() {
		defer close(respChan)

		send := func(r llm.StreamResponse) bool {
			select {
			case respChan <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		finish := ""
		for chunk, err := range p.client.Models.GenerateContentStream(ctx, model, contents, p.generateConfig(req)) {
			if err != nil {
				send(llm.StreamResponse{Done: true, ModelName: model, FinishReason: "error", Err: mapError(err, model)})
				return
			}
			if len(chunk.Candidates) > 0 && chunk.Candidates[0].FinishReason != "" {
				finish = string(chunk.Candidates[0].FinishReason)
			}
			if text := chunk.Text(); text != "" {
				if !send(llm.StreamResponse{Text: text, ModelName: model}) {
					return
				}
			}
		}
		send(llm.StreamResponse{Done: true, ModelName: model, FinishReason: finish})
	}()

	return respChan, nil
}

// mapError 把 SDK 错误转换为传输错误
func mapError(err error, model string) *models.TransportError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErrorToTransport(apiErr, model)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrorToTransport(*apiErrPtr, model)
	}
	return llm.AsTransportError(err, model)
}

func apiErrorToTransport(apiErr genai.APIError, model string) *models.TransportError {
	body := apiErr.Message
	if body == "" {
		body = apiErr.Status
	}
	return &models.TransportError{
		Kind:       models.TransportHTTPStatus,
		StatusCode: apiErr.Code,
		Body:       body,
		Message:    apiErr.Message,
		Model:      model,
	}
}
