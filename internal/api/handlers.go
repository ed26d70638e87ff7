// internal/api/handlers.go
package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ViralGen/internal/display"
	apperrors "github.com/Corphon/ViralGen/internal/errors"
	"github.com/Corphon/ViralGen/internal/llm"
	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/protocol"
	"github.com/Corphon/ViralGen/internal/services"
	"github.com/Corphon/ViralGen/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	Generation *services.GenerationService
	Metrics    *utils.GenerationMetrics
	WebSocket  *WebSocketManager
	Response   *ResponseHelper
	logger     *utils.Logger
}

// NewHandler 创建API处理器
func NewHandler(generation *services.GenerationService, metrics *utils.GenerationMetrics, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Handler{
		Generation: generation,
		Metrics:    metrics,
		WebSocket:  NewWebSocketManager(logger),
		Response:   NewResponseHelper(),
		logger:     logger,
	}
}

// ExtractRequest 解析已有文本的请求
type ExtractRequest struct {
	Text string `json:"text"`
}

// ExtractionView 解析结果
type ExtractionView struct {
	Result models.StructuredResult `json:"result"`
	Groups []display.Group         `json:"groups"`
	Report models.ExtractionReport `json:"report"`
}

// GenerationView 生成结果
type GenerationView struct {
	*services.GenerationResult
	Groups []display.Group `json:"groups"`
}

// OptionsView 表单可选项与输出语法
type OptionsView struct {
	Categories []models.Category `json:"categories"`
	Vibes      []models.Vibe     `json:"vibes"`
	Grammar    protocol.Grammar  `json:"grammar"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	llmSvc := h.Generation.LLM()
	h.Response.Success(c, gin.H{
		"status":    "ok",
		"llm_ready": llmSvc.IsReady(),
		"provider":  llmSvc.GetProviderName(),
	})
}

// GetOptions 返回类目、风格与输出语法
func (h *Handler) GetOptions(c *gin.Context) {
	h.Response.Success(c, OptionsView{
		Categories: models.Categories(),
		Vibes:      models.Vibes(),
		Grammar:    h.Generation.Grammar(),
	})
}

// GetLLMStatus 获取LLM服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	llmSvc := h.Generation.LLM()
	ready, state := llmSvc.GetProviderStatus()
	h.Response.Success(c, gin.H{
		"ready":               ready,
		"status":              state,
		"provider":            llmSvc.GetProviderName(),
		"models":              llmSvc.Models(),
		"available_providers": llm.ListProviders(),
	})
}

func (h *Handler) bindForm(c *gin.Context) (models.GenerationRequest, bool) {
	var form models.GenerationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return models.GenerationRequest{}, false
	}
	req, err := form.ToRequest()
	if err != nil {
		h.Response.AppError(c, err)
		return models.GenerationRequest{}, false
	}
	return req, true
}

// ComposePrompt 只返回组装后的提示词
func (h *Handler) ComposePrompt(c *gin.Context) {
	req, ok := h.bindForm(c)
	if !ok {
		return
	}
	h.Response.Success(c, gin.H{"prompt": h.Generation.ComposePrompt(req)})
}

// ExtractText 解析粘贴的模型输出
func (h *Handler) ExtractText(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}
	result, report := h.Generation.Extract(req.Text)
	h.Response.Success(c, ExtractionView{
		Result: result,
		Groups: display.Groups(h.Generation.Grammar(), result),
		Report: report,
	})
}

// Generate 完整生成流程
func (h *Handler) Generate(c *gin.Context) {
	req, ok := h.bindForm(c)
	if !ok {
		return
	}

	out, err := h.Generation.Generate(c.Request.Context(), req)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, GenerationView{
		GenerationResult: out,
		Groups:           display.Groups(h.Generation.Grammar(), out.Result),
	})
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func (h *Handler) history(c *gin.Context) (*services.HistoryService, bool) {
	history := h.Generation.History()
	if history == nil {
		h.Response.AppError(c, apperrors.NewNotFoundError("generation history is disabled", nil))
		return nil, false
	}
	return history, true
}

// ListHistory 最近的生成记录
func (h *Handler) ListHistory(c *gin.Context) {
	history, ok := h.history(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.Response.BadRequest(c, "limit must be a positive integer", raw)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := history.List(limit)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"items": entries, "count": len(entries)})
}

// GetHistory 按ID获取生成记录
func (h *Handler) GetHistory(c *gin.Context) {
	history, ok := h.history(c)
	if !ok {
		return
	}
	out, err := history.Get(c.Param("id"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, GenerationView{
		GenerationResult: out,
		Groups:           display.Groups(h.Generation.Grammar(), out.Result),
	})
}

// DeleteHistory 删除生成记录
func (h *Handler) DeleteHistory(c *gin.Context) {
	history, ok := h.history(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := history.Delete(id); err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"deleted": id})
}

// GetMetrics 指标快照
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, h.Metrics.Collector().GetMetrics())
}

// GetWebSocketStatus 当前WebSocket连接数
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, gin.H{"active_connections": h.WebSocket.Count()})
}
