// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/Corphon/ViralGen/internal/models"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的AI提供者")

// 请求参数标准化
type CompletionRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	Model        string  `json:"model,omitempty"`
}

// 响应结构标准化
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// 流式响应。Err 非空时为最后一条消息。
type StreamResponse struct {
	Text         string                 `json:"text"`
	FinishReason string                 `json:"finish_reason,omitempty"`
	ModelName    string                 `json:"model_name,omitempty"`
	Done         bool                   `json:"done"`
	Err          *models.TransportError `json:"-"`
}

// Provider 定义所有LLM提供者必须实现的接口。
// 调用失败时返回 *models.TransportError。
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 获取支持的模型列表
	GetSupportedModels() []string

	// 文本生成
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// 流式响应生成
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan StreamResponse, error)
}

// ProviderFactory 提供者工厂
type ProviderFactory func() Provider

// Registry 提供者注册表
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// 全局注册表，提供者包在 init 中注册
var DefaultRegistry = NewRegistry()

// Register 注册一个新的LLM提供者
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// GetProvider 获取指定名称的提供者实例并初始化
func (r *Registry) GetProvider(name string, config map[string]string) (Provider, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}
	return provider, nil
}

// ListProviders 返回所有已注册的提供者名称（排序）
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register 注册到全局注册表
func Register(name string, factory ProviderFactory) {
	DefaultRegistry.Register(name, factory)
}

// GetProvider 从全局注册表创建提供者
func GetProvider(name string, config map[string]string) (Provider, error) {
	return DefaultRegistry.GetProvider(name, config)
}

// ListProviders 全局注册表中的提供者名称
func ListProviders() []string {
	return DefaultRegistry.ListProviders()
}

// AsTransportError 把任意错误归一为传输错误
func AsTransportError(err error, model string) *models.TransportError {
	if err == nil {
		return nil
	}
	var terr *models.TransportError
	if errors.As(err, &terr) {
		if terr.Model == "" {
			terr.Model = model
		}
		return terr
	}
	return &models.TransportError{Kind: models.TransportConnection, Body: err.Error(), Model: model}
}

// ShouldFallback 该错误是否值得换一个模型重试：模型不存在、限流、服务端错误或连接失败
func ShouldFallback(terr *models.TransportError) bool {
	if terr == nil {
		return false
	}
	switch terr.Kind {
	case models.TransportConnection:
		return true
	case models.TransportHTTPStatus:
		return terr.StatusCode == http.StatusNotFound ||
			terr.StatusCode == http.StatusTooManyRequests ||
			terr.StatusCode >= 500
	}
	return false
}
