// internal/api/router.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ViralGen/internal/config"
	"github.com/Corphon/ViralGen/internal/services"
	"github.com/Corphon/ViralGen/internal/utils"
)

// Server 路由及其需要随进程关闭的资源
type Server struct {
	Engine      *gin.Engine
	Handler     *Handler
	rateLimiter *RateLimiter
}

// Close 关闭WebSocket连接并停止限流清理
func (s *Server) Close() {
	s.Handler.WebSocket.CloseAll()
	s.rateLimiter.Stop()
}

// SetupRouter 配置HTTP路由
func SetupRouter(cfg *config.Config, generation *services.GenerationService, metrics *utils.GenerationMetrics, logger *utils.Logger) *Server {
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := NewHandler(generation, metrics, logger)
	limiter := NewRateLimiter()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(corsMiddleware())
	r.Use(MetricsMiddleware(metrics))

	// WebSocket 支持
	r.GET("/ws/generate", limiter.ByIP(cfg.GenerateRateLimit, time.Minute), handler.GenerateWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/health", handler.HealthCheck)
		api.GET("/options", handler.GetOptions)
		api.GET("/metrics", handler.GetMetrics)
		api.GET("/ws/status", handler.GetWebSocketStatus)

		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
		}

		historyGroup := api.Group("/history")
		{
			historyGroup.GET("", handler.ListHistory)
			historyGroup.GET("/:id", handler.GetHistory)
			historyGroup.DELETE("/:id", handler.DeleteHistory)
		}

		// 不调用模型的端点
		api.POST("/prompt", limiter.ByIP(cfg.DefaultRateLimit, time.Minute), handler.ComposePrompt)
		api.POST("/extract", limiter.ByIP(cfg.DefaultRateLimit, time.Minute), handler.ExtractText)

		// 调用模型，单独限流
		api.POST("/generate", limiter.ByIP(cfg.GenerateRateLimit, time.Minute), handler.Generate)
	}

	r.NoRoute(func(c *gin.Context) {
		handler.Response.NotFound(c, "route not found: "+c.Request.Method+" "+c.Request.URL.Path)
	})

	return &Server{Engine: r, Handler: handler, rateLimiter: limiter}
}
