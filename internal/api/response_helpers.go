// internal/api/response_helpers.go
package api

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/ViralGen/internal/errors"
	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/services"
)

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// 查询串或 JSON 中的密钥值
var secretPattern = regexp.MustCompile(`(?i)((?:api[_-]?key|key|token|secret)["']?\s*[=:]\s*["']?)[A-Za-z0-9_\-\.]{8,}`)

// maskSecrets 遮盖回显请求内容中的密钥，其余内容原样保留
func maskSecrets(message string) string {
	return secretPattern.ReplaceAllString(message, "${1}***")
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: message,
	}

	// details 回显请求内容，可能带有调用方的密钥
	if len(details) > 0 {
		apiError.Details = maskSecrets(details[0])
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, message string) {
	rh.Error(c, http.StatusNotFound, ErrorNotFound, message)
}

// AppError 按错误类型映射状态码与错误代码
func (rh *ResponseHelper) AppError(c *gin.Context, err error) {
	rh.Error(c, apperrors.HTTPStatus(err), errorCode(err), err.Error())
}

// errorCode 先按具体原因细分，其余按错误类型
func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrAPIKeyMissing):
		return ErrorAPIKeyMissing
	case errors.Is(err, services.ErrLLMNotReady):
		return ErrorLLMServiceUnavailable
	case errors.Is(err, models.ErrTopicMissing):
		return ErrorTopicMissing
	case errors.Is(err, models.ErrInvalidCategory):
		return ErrorInvalidCategory
	case errors.Is(err, models.ErrInvalidVibe):
		return ErrorInvalidVibe
	case apperrors.IsNotFoundError(err):
		return ErrorNotFound
	case apperrors.IsTransportError(err):
		return ErrorTransportFailed
	case apperrors.IsTimeoutError(err):
		return ErrorGenerationTimeout
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return ErrorInternalError
	}
	return apperrors.CodeOf(err)
}

// getRequestID 获取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
