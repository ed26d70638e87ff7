// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation_error"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeUnavailable ErrorType = "service_unavailable"
	ErrorTypeTransport   ErrorType = "transport_error"
	ErrorTypeError       ErrorType = "processing_error"
	ErrorTypeTimeout     ErrorType = "timeout"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误（缺少主题、缺少凭据、非法枚举）
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewUnavailableError 创建服务不可用错误（提供者初始化失败等）
func NewUnavailableError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnavailable, message, originalError)
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewTransportError 创建传输错误。原始错误原样保留，供用户直接查看。
func NewTransportError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTransport, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewTimeoutError 创建超时错误
func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsUnavailableError 检查是否为服务不可用错误
func IsUnavailableError(err error) bool {
	return hasType(err, ErrorTypeUnavailable)
}

// IsNotFoundError 检查是否为资源不存在错误
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsTransportError 检查是否为传输错误
func IsTransportError(err error) bool {
	return hasType(err, ErrorTypeTransport)
}

// IsTimeoutError 检查是否为超时错误
func IsTimeoutError(err error) bool {
	return hasType(err, ErrorTypeTimeout)
}

func hasType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// HTTPStatus 将错误映射为 HTTP 状态码
func HTTPStatus(err error) int {
	var appError *AppError
	if !errors.As(err, &appError) {
		return http.StatusInternalServerError
	}

	switch appError.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeTransport:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf 返回错误代码，非 AppError 返回 INTERNAL_ERROR
func CodeOf(err error) string {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Code
	}
	return "INTERNAL_ERROR"
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeUnavailable:
		return "SERVICE_UNAVAILABLE"
	case ErrorTypeTransport:
		return "TRANSPORT_ERROR"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
