// internal/api/websocket.go
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Corphon/ViralGen/internal/display"
	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/utils"
)

const (
	wsRequestTimeout = 30 * time.Second
	wsWriteTimeout   = 10 * time.Second
	wsMaxMessageSize = 64 * 1024
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 事件类型
const (
	EventChunk  = "chunk"
	EventResult = "result"
	EventError  = "error"
)

// StreamEvent 服务端推送的事件
type StreamEvent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Data      *GenerationView `json:"data,omitempty"`
	Error     *APIError       `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// WebSocketClient 一个生成连接
type WebSocketClient struct {
	id        string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closed    int32 // 原子操作标志，0=开启，1=关闭
	createdAt time.Time
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		client.conn.Close()
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// Send 写入一个事件
func (client *WebSocketClient) Send(event StreamEvent) error {
	if client.IsClosed() {
		return websocket.ErrCloseSent
	}
	event.Timestamp = time.Now()

	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return client.conn.WriteJSON(event)
}

// SendError 发送错误事件
func (client *WebSocketClient) SendError(code, message string) error {
	return client.Send(StreamEvent{Type: EventError, Error: &APIError{Code: code, Message: message}})
}

// WebSocketManager 跟踪活动连接，关闭服务时统一断开
type WebSocketManager struct {
	clients map[*WebSocketClient]struct{}
	mutex   sync.RWMutex
	logger  *utils.Logger
}

// NewWebSocketManager 创建连接管理器
func NewWebSocketManager(logger *utils.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients: make(map[*WebSocketClient]struct{}),
		logger:  logger,
	}
}

func (manager *WebSocketManager) register(client *WebSocketClient) {
	manager.mutex.Lock()
	manager.clients[client] = struct{}{}
	manager.mutex.Unlock()
	manager.logger.Debug("WebSocket client connected", map[string]interface{}{"client": client.id})
}

func (manager *WebSocketManager) unregister(client *WebSocketClient) {
	manager.mutex.Lock()
	delete(manager.clients, client)
	manager.mutex.Unlock()
	client.Close()
	manager.logger.Debug("WebSocket client disconnected", map[string]interface{}{
		"client":   client.id,
		"duration": time.Since(client.createdAt).Milliseconds(),
	})
}

// Count 活动连接数
func (manager *WebSocketManager) Count() int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.clients)
}

// CloseAll 断开所有连接
func (manager *WebSocketManager) CloseAll() {
	manager.mutex.Lock()
	clients := make([]*WebSocketClient, 0, len(manager.clients))
	for client := range manager.clients {
		clients = append(clients, client)
	}
	manager.clients = make(map[*WebSocketClient]struct{})
	manager.mutex.Unlock()

	for _, client := range clients {
		client.writeMu.Lock()
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.writeMu.Unlock()
		client.Close()
	}
}

// GenerateWebSocket 客户端发送一个生成请求；服务端推送若干 chunk 事件，
// 最后推送一个 result 或 error 事件后关闭连接。
func (h *Handler) GenerateWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := &WebSocketClient{id: uuid.NewString(), conn: conn, createdAt: time.Now()}
	h.WebSocket.register(client)
	defer h.WebSocket.unregister(client)

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsRequestTimeout))

	var form models.GenerationForm
	if err := conn.ReadJSON(&form); err != nil {
		client.SendError(ErrorBadRequest, "invalid request message")
		return
	}
	req, err := form.ToRequest()
	if err != nil {
		h.sendAppError(client, err)
		return
	}

	// 客户端断开时取消生成
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	conn.SetReadDeadline(time.Time{})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	out, err := h.Generation.GenerateStream(ctx, req, func(text string) {
		if err := client.Send(StreamEvent{Type: EventChunk, Text: text}); err != nil {
			cancel()
		}
	})
	if err != nil {
		h.sendAppError(client, err)
		return
	}

	client.Send(StreamEvent{Type: EventResult, Data: &GenerationView{
		GenerationResult: out,
		Groups:           display.Groups(h.Generation.Grammar(), out.Result),
	}})

	client.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	client.writeMu.Unlock()
}

func (h *Handler) sendAppError(client *WebSocketClient, err error) {
	client.SendError(errorCode(err), err.Error())
}
