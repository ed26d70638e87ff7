// internal/llm/providers/openrouter/openrouter.go
package openrouter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Corphon/ViralGen/internal/llm"
	"github.com/Corphon/ViralGen/internal/models"
)

func init() {
	llm.Register("openrouter", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"google/gemini-2.5-flash",
				"google/gemini-2.0-flash-001",
				"meta-llama/llama-3.3-70b-instruct",
			},
			baseURL: "https://openrouter.ai/api/v1",
		}
	})
}

type Provider struct {
	client            *resty.Client
	baseURL           string
	defaultModel      string
	recommendedModels []string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"` // OpenRouter返回实际使用的模型
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return errors.New("OpenRouter API密钥未提供")
	}

	p.defaultModel = config["default_model"]
	if p.defaultModel == "" {
		p.defaultModel = "google/gemini-2.5-flash"
	}
	if baseURL := config["base_url"]; baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}

	appName := config["app_name"]
	if appName == "" {
		appName = "ViralGen"
	}

	p.client = resty.New().
		SetBaseURL(p.baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Title", appName)
	if referer := config["http_referer"]; referer != "" {
		p.client.SetHeader("HTTP-Referer", referer)
	}
	if timeout, err := time.ParseDuration(config["timeout"]); err == nil && timeout > 0 {
		p.client.SetTimeout(timeout)
	}
	return nil
}

func (p *Provider) GetName() string {
	return "OpenRouter"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

func (p *Provider) buildRequest(req llm.CompletionRequest, stream bool) chatRequest {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
	return chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	body := p.buildRequest(req, false)

	var result chatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return nil, llm.AsTransportError(err, body.Model)
	}
	if resp.IsError() {
		return nil, statusError(resp.StatusCode(), resp.Body(), body.Model)
	}
	if len(result.Choices) == 0 {
		return nil, &models.TransportError{Kind: models.TransportEmpty, Body: "OpenRouter未返回任何结果", Model: body.Model}
	}

	modelName := result.Model
	if modelName == "" {
		modelName = body.Model
	}
	return &llm.CompletionResponse{
		Text:         result.Choices[0].Message.Content,
		FinishReason: result.Choices[0].FinishReason,
		TokensUsed:   result.Usage.TotalTokens,
		ModelName:    modelName,
		ProviderName: p.GetName(),
	}, nil
}

// StreamCompletion 实现流式响应（SSE）
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	body := p.buildRequest(req, true)

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post("/chat/completions")
	if err != nil {
		return nil, llm.AsTransportError(err, body.Model)
	}
	raw := resp.RawBody()
	if resp.IsError() {
		data, _ := io.ReadAll(raw)
		raw.Close()
		return nil, statusError(resp.StatusCode(), data, body.Model)
	}

	respChan := make(chan llm.StreamResponse)
	go func() {
		defer raw.Close()
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
		scanner := bufio.NewScanner(raw)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			// 空行或注释
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			line = strings.TrimPrefix(line, "data: ")
			if line == "[DONE]" {
				break
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil || len(chunk.Choices) == 0 {
				continue
			}
			if chunk.Choices[0].FinishReason != "" {
				finish = chunk.Choices[0].FinishReason
			}
			if text := chunk.Choices[0].Delta.Content; text != "" {
				if !send(llm.StreamResponse{Text: text, ModelName: body.Model}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			send(llm.StreamResponse{Done: true, ModelName: body.Model, FinishReason: "error", Err: llm.AsTransportError(err, body.Model)})
			return
		}
		send(llm.StreamResponse{Done: true, ModelName: body.Model, FinishReason: finish})
	}()

	return respChan, nil
}

func statusError(status int, body []byte, model string) *models.TransportError {
	terr := &models.TransportError{
		Kind:       models.TransportHTTPStatus,
		StatusCode: status,
		Body:       strings.TrimSpace(string(body)),
		Model:      model,
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		terr.Message = env.Error.Message
	}
	return terr
}
