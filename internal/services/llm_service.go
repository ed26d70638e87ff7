// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/ViralGen/internal/config"
	"github.com/Corphon/ViralGen/internal/llm"
	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/utils"
)

var (
	ErrLLMNotReady = errors.New("llm service not ready")

	// ErrAPIKeyMissing 未就绪的一种：没有配置凭据
	ErrAPIKeyMissing = fmt.Errorf("%w: API key is not configured", ErrLLMNotReady)
)

// LLMService 持有当前提供者，按模型列表依次尝试调用
type LLMService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	models        []string
	temperature   float32
	maxTokens     int
	isReady       bool
	readyState    string
	notReady      error

	metrics *utils.GenerationMetrics
	logger  *utils.Logger
}

// NewLLMService 根据配置创建服务。凭据缺失时服务未就绪，但不返回错误。
func NewLLMService(cfg *config.Config, metrics *utils.GenerationMetrics, logger *utils.Logger) *LLMService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	s := &LLMService{
		providerName: cfg.LLMProvider,
		models:       cfg.Models(),
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		readyState:   "Not initialized",
		notReady:     ErrLLMNotReady,
		metrics:      utils.NewGenerationMetrics(nil, logger),
		logger:       logger,
	}
	if metrics != nil {
		s.metrics = metrics
	}

	if err := cfg.Validate(); err != nil {
		s.readyState = "API key not configured"
		s.notReady = ErrAPIKeyMissing
		if cfg.APIKey != "" {
			s.readyState = fmt.Sprintf("Configuration failed: %v", err)
			s.notReady = fmt.Errorf("%w: %v", ErrLLMNotReady, err)
		}
		logger.Warn("LLM service not ready", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"reason":   err.Error(),
		})
		return s
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.ProviderConfig())
	if err != nil {
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.notReady = fmt.Errorf("%w: %v", ErrLLMNotReady, err)
		logger.Error("LLM provider initialization failed", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"error":    err.Error(),
		})
		return s
	}
	s.provider = provider
	s.isReady = true
	s.readyState = "Ready"
	s.notReady = nil
	return s
}

// UpdateProvider 替换当前提供者和模型列表
func (s *LLMService) UpdateProvider(name string, provider llm.Provider, modelList []string) {
	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = name
	if len(modelList) > 0 {
		s.models = append([]string(nil), modelList...)
	}
	s.isReady = provider != nil
	if s.isReady {
		s.readyState = "Ready"
		s.notReady = nil
	} else {
		s.readyState = "LLM provider not configured"
		s.notReady = ErrLLMNotReady
	}
}

// IsReady 是否可以发起调用
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// ReadyErr 就绪时返回 nil；缺少凭据时返回 ErrAPIKeyMissing，其他原因包装 ErrLLMNotReady
func (s *LLMService) ReadyErr() error {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyErrLocked()
}

func (s *LLMService) readyErrLocked() error {
	if s.provider != nil && s.isReady && len(s.models) > 0 {
		return nil
	}
	if s.notReady != nil {
		return s.notReady
	}
	return ErrLLMNotReady
}

// GetReadyState 就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderStatus 返回 (是否就绪, 状态描述)
func (s *LLMService) GetProviderStatus() (bool, string) {
	return s.IsReady(), s.GetReadyState()
}

func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// Models 主模型在前
func (s *LLMService) Models() []string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return append([]string(nil), s.models...)
}

func (s *LLMService) snapshot() (llm.Provider, string, []string, error) {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	if err := s.readyErrLocked(); err != nil {
		return nil, s.providerName, nil, err
	}
	return s.provider, s.providerName, append([]string(nil), s.models...), nil
}

func (s *LLMService) request(prompt, model string) llm.CompletionRequest {
	return llm.CompletionRequest{
		Prompt:      prompt,
		Model:       model,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
}

// Complete 单次生成调用。传输失败编码在返回的 RawResponse 中，
// error 仅表示服务未就绪。
func (s *LLMService) Complete(ctx context.Context, prompt string) (models.RawResponse, string, error) {
	provider, providerName, modelList, err := s.snapshot()
	if err != nil {
		return models.RawResponse{}, "", err
	}

	var lastErr *models.TransportError
	for i, model := range modelList {
		if i > 0 {
			s.metrics.RecordFallback(modelList[i-1], model)
		}

		start := time.Now()
		resp, err := provider.CompleteText(ctx, s.request(prompt, model))
		if err == nil {
			s.metrics.RecordLLMRequest(providerName, model, resp.TokensUsed, time.Since(start))
			return models.OkResponse(resp.Text), model, nil
		}

		lastErr = llm.AsTransportError(err, model)
		s.metrics.RecordTransportFailure(providerName, model, lastErr)
		if !llm.ShouldFallback(lastErr) || ctx.Err() != nil {
			break
		}
	}
	return models.FailedResponse(lastErr), lastErr.Model, nil
}

// Stream 流式生成调用。只在尚未输出任何分片时才切换备用模型。
func (s *LLMService) Stream(ctx context.Context, prompt string, onChunk func(string)) (models.RawResponse, string, error) {
	provider, providerName, modelList, err := s.snapshot()
	if err != nil {
		return models.RawResponse{}, "", err
	}

	var lastErr *models.TransportError
	for i, model := range modelList {
		if i > 0 {
			s.metrics.RecordFallback(modelList[i-1], model)
		}

		start := time.Now()
		text, emitted, terr := s.streamOnce(ctx, provider, prompt, model, onChunk)
		if terr == nil {
			s.metrics.RecordLLMRequest(providerName, model, 0, time.Since(start))
			return models.OkResponse(text), model, nil
		}

		lastErr = terr
		s.metrics.RecordTransportFailure(providerName, model, terr)
		if emitted || !llm.ShouldFallback(terr) || ctx.Err() != nil {
			break
		}
	}
	return models.FailedResponse(lastErr), lastErr.Model, nil
}

func (s *LLMService) streamOnce(ctx context.Context, provider llm.Provider, prompt, model string, onChunk func(string)) (string, bool, *models.TransportError) {
	ch, err := provider.StreamCompletion(ctx, s.request(prompt, model))
	if err != nil {
		return "", false, llm.AsTransportError(err, model)
	}

	var buf strings.Builder
	emitted := false
	for chunk := range ch {
		if chunk.Err != nil {
			return buf.String(), emitted, llm.AsTransportError(chunk.Err, model)
		}
		if chunk.Text != "" {
			buf.WriteString(chunk.Text)
			emitted = true
			if onChunk != nil {
				onChunk(chunk.Text)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return buf.String(), emitted, llm.AsTransportError(err, model)
	}
	return buf.String(), emitted, nil
}
