// internal/models/response.go
package models

import "fmt"

// TransportErrorKind 传输失败种类
type TransportErrorKind string

const (
	TransportHTTPStatus TransportErrorKind = "http_status"
	TransportConnection TransportErrorKind = "connection"
	TransportEmpty      TransportErrorKind = "empty_response"
)

// TransportError 生成接口调用的失败：非 2xx 状态码或连接错误。
// Body 保留原始响应体，Message 是从中解析出的错误说明（可能为空）。
type TransportError struct {
	Kind       TransportErrorKind `json:"kind"`
	StatusCode int                `json:"status_code,omitempty"`
	Body       string             `json:"body"`
	Message    string             `json:"message,omitempty"`
	Model      string             `json:"model,omitempty"`
}

// Error 原样带出响应体
func (e *TransportError) Error() string {
	if e.Kind == TransportHTTPStatus {
		return fmt.Sprintf("generation API error (%d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("generation API %s: %s", e.Kind, e.Body)
}

// RawResponse 生成调用的原始结果：Text 或 Err 二者其一
type RawResponse struct {
	text string
	err  *TransportError
}

// OkResponse 成功结果
func OkResponse(text string) RawResponse {
	return RawResponse{text: text}
}

// FailedResponse 失败结果
func FailedResponse(err *TransportError) RawResponse {
	if err == nil {
		err = &TransportError{Kind: TransportEmpty, Body: "no detail"}
	}
	return RawResponse{err: err}
}

// Ok 是否成功
func (r RawResponse) Ok() bool { return r.err == nil }

// Text 成功时的原始文本
func (r RawResponse) Text() string { return r.text }

// Err 失败时的传输错误
func (r RawResponse) Err() *TransportError { return r.err }
