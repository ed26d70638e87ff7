// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/Corphon/ViralGen/internal/errors"
)

// Config 应用配置。显式传递给服务和传输层，不使用全局可变状态。
type Config struct {
	// 基础配置
	Port      string
	LogDir    string
	LogLevel  string
	DebugMode bool

	// 生成历史，默认关闭；设置目录后才保存
	HistoryDir string
	HistoryMax int

	// 每分钟每IP请求数，0 表示不限流
	DefaultRateLimit  int
	GenerateRateLimit int

	// LLM相关配置
	LLMProvider    string
	APIKey         string
	Model          string
	FallbackModels []string
	BaseURL        string
	RequestTimeout time.Duration
	Temperature    float32
	MaxTokens      int
}

// 各提供者的默认模型
var providerDefaultModels = map[string]string{
	"google":     "gemini-2.5-flash",
	"openrouter": "google/gemini-2.5-flash",
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "google"))

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		LogDir:            getEnv("LOG_DIR", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DebugMode:         getEnvBool("DEBUG_MODE", false),
		HistoryDir:        getEnv("HISTORY_DIR", ""),
		HistoryMax:        getEnvInt("HISTORY_MAX", 200),
		DefaultRateLimit:  getEnvInt("RATE_LIMIT_DEFAULT", 100),
		GenerateRateLimit: getEnvInt("RATE_LIMIT_GENERATE", 10),
		LLMProvider:       provider,
		APIKey:            firstEnv(apiKeyEnvNames(provider)...),
		Model:             getEnv("LLM_MODEL", providerDefaultModels[provider]),
		FallbackModels:    getEnvList("LLM_FALLBACK_MODELS", defaultFallbacks(provider)),
		BaseURL:           getEnv("LLM_BASE_URL", ""),
		RequestTimeout:    getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		Temperature:       float32(getEnvFloat("LLM_TEMPERATURE", 0.9)),
		MaxTokens:         getEnvInt("LLM_MAX_TOKENS", 4096),
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("未知的LLM提供者且未设置 LLM_MODEL: %s", provider)
	}

	return cfg, nil
}

// Validate 检查调用生成接口前必须具备的配置
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return apperrors.NewValidationError("API key is not configured", nil)
	}
	if c.Model == "" {
		return apperrors.NewValidationError("model is not configured", nil)
	}
	return nil
}

// ProviderConfig 生成提供者初始化参数
func (c *Config) ProviderConfig() map[string]string {
	m := map[string]string{
		"api_key":       c.APIKey,
		"default_model": c.Model,
	}
	if c.BaseURL != "" {
		m["base_url"] = c.BaseURL
	}
	if c.RequestTimeout > 0 {
		m["timeout"] = c.RequestTimeout.String()
	}
	return m
}

// Models 主模型加备用模型，去重保序
func (c *Config) Models() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range append([]string{c.Model}, c.FallbackModels...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func apiKeyEnvNames(provider string) []string {
	switch provider {
	case "google":
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "LLM_API_KEY"}
	case "openrouter":
		return []string{"OPENROUTER_API_KEY", "LLM_API_KEY"}
	default:
		return []string{"LLM_API_KEY"}
	}
}

func defaultFallbacks(provider string) []string {
	if provider == "google" {
		return []string{"gemini-2.0-flash"}
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 32)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// getEnvList 逗号分隔的列表。显式设置为空字符串表示清空默认值。
func getEnvList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
