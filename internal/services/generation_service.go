// internal/services/generation_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/ViralGen/internal/errors"
	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/protocol"
	"github.com/Corphon/ViralGen/internal/utils"
)

// GenerationResult 一次生成的完整结果
type GenerationResult struct {
	ID        string                  `json:"id"`
	Topic     string                  `json:"topic"`
	Category  models.Category         `json:"category"`
	Vibe      models.Vibe             `json:"vibe"`
	Provider  string                  `json:"provider"`
	Model     string                  `json:"model"`
	Raw       string                  `json:"raw"`
	Result    models.StructuredResult `json:"result"`
	Report    models.ExtractionReport `json:"report"`
	Duration  time.Duration           `json:"duration_ns"`
	CreatedAt time.Time               `json:"created_at"`
}

// GenerationService 串联 组装提示词 -> 调用模型 -> 解析输出
type GenerationService struct {
	llm       *LLMService
	composer  *protocol.Composer
	extractor *protocol.Extractor
	history   *HistoryService
	metrics   *utils.GenerationMetrics
	logger    *utils.Logger
}

// NewGenerationService 创建生成服务
func NewGenerationService(llmService *LLMService, grammar protocol.Grammar, metrics *utils.GenerationMetrics, logger *utils.Logger) *GenerationService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewGenerationMetrics(nil, logger)
	}
	return &GenerationService{
		llm:       llmService,
		composer:  protocol.NewComposer(grammar),
		extractor: protocol.NewExtractor(grammar),
		metrics:   metrics,
		logger:    logger,
	}
}

// LLM 底层模型服务
func (s *GenerationService) LLM() *LLMService {
	return s.llm
}

// SetHistory 设置历史记录，nil 表示不保存
func (s *GenerationService) SetHistory(h *HistoryService) {
	s.history = h
}

// History 可能为 nil
func (s *GenerationService) History() *HistoryService {
	return s.history
}

// Grammar 当前使用的输出语法
func (s *GenerationService) Grammar() protocol.Grammar {
	return s.extractor.Grammar()
}

// ComposePrompt 只组装提示词，不发起调用
func (s *GenerationService) ComposePrompt(req models.GenerationRequest) string {
	return s.composer.Compose(req)
}

// Extract 解析一段已有的模型输出，从不失败
func (s *GenerationService) Extract(raw string) (models.StructuredResult, models.ExtractionReport) {
	result, report := s.extractor.Extract(raw)
	s.metrics.RecordExtraction(report)
	return result, report
}

// Generate 完整流程
func (s *GenerationService) Generate(ctx context.Context, req models.GenerationRequest) (*GenerationResult, error) {
	return s.run(ctx, req, nil)
}

// GenerateStream 与 Generate 相同，但逐片回调模型输出
func (s *GenerationService) GenerateStream(ctx context.Context, req models.GenerationRequest, onChunk func(string)) (*GenerationResult, error) {
	if onChunk == nil {
		onChunk = func(string) {}
	}
	return s.run(ctx, req, onChunk)
}

func (s *GenerationService) run(ctx context.Context, req models.GenerationRequest, onChunk func(string)) (*GenerationResult, error) {
	if req.Topic() == "" {
		return nil, apperrors.NewValidationError(models.ErrTopicMissing.Error(), models.ErrTopicMissing)
	}
	if s.llm == nil {
		return nil, notReadyError(ErrLLMNotReady)
	}
	if err := s.llm.ReadyErr(); err != nil {
		return nil, notReadyError(err)
	}

	done := s.metrics.StartGeneration()
	defer done()

	start := time.Now()
	prompt := s.composer.Compose(req)

	var (
		resp  models.RawResponse
		model string
		err   error
	)
	if onChunk != nil {
		resp, model, err = s.llm.Stream(ctx, prompt, onChunk)
	} else {
		resp, model, err = s.llm.Complete(ctx, prompt)
	}
	if err != nil {
		if errors.Is(err, ErrLLMNotReady) {
			return nil, notReadyError(err)
		}
		return nil, apperrors.NewProcessingError("generation failed", err)
	}

	if !resp.Ok() {
		terr := resp.Err()
		s.logger.Error("Generation transport failure", map[string]interface{}{
			"topic":  req.Topic(),
			"model":  model,
			"kind":   terr.Kind,
			"status": terr.StatusCode,
		})
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError(terr.Error(), terr)
		}
		return nil, apperrors.NewTransportError(terr.Error(), terr)
	}

	result, report := s.Extract(resp.Text())
	out := &GenerationResult{
		ID:        uuid.NewString(),
		Topic:     req.Topic(),
		Category:  req.Category(),
		Vibe:      req.Vibe(),
		Provider:  s.llm.GetProviderName(),
		Model:     model,
		Raw:       resp.Text(),
		Result:    result,
		Report:    report,
		Duration:  time.Since(start),
		CreatedAt: time.Now(),
	}

	fields := map[string]interface{}{
		"id":       out.ID,
		"category": out.Category,
		"vibe":     out.Vibe,
		"model":    model,
		"duration": out.Duration.Milliseconds(),
	}
	if report.Degraded() {
		fields["sentinel_fields"] = report.SentinelFields
		s.logger.Warn("Generation completed with placeholders", fields)
	} else {
		s.logger.Info("Generation completed", fields)
	}

	if s.history != nil {
		if err := s.history.Save(out); err != nil {
			s.logger.Warn("Failed to save generation history", map[string]interface{}{
				"id":    out.ID,
				"error": err.Error(),
			})
		}
	}
	return out, nil
}

// notReadyError 缺少凭据是输入问题，其余未就绪原因按服务不可用处理
func notReadyError(err error) error {
	if errors.Is(err, ErrAPIKeyMissing) {
		return apperrors.NewValidationError("API key is not configured", err)
	}
	return apperrors.NewUnavailableError("LLM service is not available", err)
}
