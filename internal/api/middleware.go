// internal/api/middleware.go
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/ViralGen/internal/utils"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RateLimiter 固定窗口限流
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.Mutex
	stop     chan struct{}
	once     sync.Once
}

// Visitor represents a client with rate limiting data
type Visitor struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*Visitor),
		stop:     make(chan struct{}),
	}
	go rl.cleanup(10 * time.Minute)
	return rl
}

// Stop 停止后台清理
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup removes visitors whose window has expired
func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, visitor := range rl.visitors {
				if now.After(visitor.Reset) {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Allow 消耗一次配额，返回是否放行以及当前窗口状态
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) (bool, Visitor) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	visitor, exists := rl.visitors[key]
	if !exists || now.After(visitor.Reset) {
		visitor = &Visitor{Limit: limit, Remaining: limit, Reset: now.Add(window)}
		rl.visitors[key] = visitor
	}

	if visitor.Remaining <= 0 {
		return false, *visitor
	}
	visitor.Remaining--
	return true, *visitor
}

// Middleware 按 keyFunc 分组限流
func (rl *RateLimiter) Middleware(limit int, window time.Duration, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	rh := NewResponseHelper()
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		allowed, v := rl.Allow(keyFunc(c), limit, window)

		c.Header("X-RateLimit-Limit", strconv.Itoa(v.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(v.Reset.Unix(), 10))

		if !allowed {
			rh.Error(c, http.StatusTooManyRequests, ErrorRateLimitExceeded, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ByIP 按客户端IP与路由限流，limit<=0 表示不限流
func (rl *RateLimiter) ByIP(limit int, window time.Duration) gin.HandlerFunc {
	return rl.Middleware(limit, window, func(c *gin.Context) string {
		return c.ClientIP() + " " + c.FullPath()
	})
}

// RequestIDMiddleware 为每个请求分配ID，沿用客户端传入的值
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// MetricsMiddleware 记录请求次数与耗时
func MetricsMiddleware(metrics *utils.GenerationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordAPIRequest(path, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
