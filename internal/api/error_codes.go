// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest        = "BAD_REQUEST"
	ErrorNotFound          = "NOT_FOUND"
	ErrorInternalError     = "INTERNAL_ERROR"
	ErrorRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// 输入相关错误
	ErrorTopicMissing    = "TOPIC_MISSING"
	ErrorInvalidCategory = "INVALID_CATEGORY"
	ErrorInvalidVibe     = "INVALID_VIBE"

	// LLM服务相关错误
	ErrorAPIKeyMissing         = "API_KEY_MISSING"
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorTransportFailed       = "TRANSPORT_ERROR"
	ErrorGenerationTimeout     = "TIMEOUT"
)
