// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Corphon/ViralGen/internal/api"
	"github.com/Corphon/ViralGen/internal/app"
	"github.com/Corphon/ViralGen/internal/config"
	"github.com/Corphon/ViralGen/internal/utils"
)

func main() {
	logger := utils.GetLogger()
	logger.Info("Starting ViralGen server", nil)

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}

	// 2. 初始化服务
	application, err := app.New(cfg, nil)
	if err != nil {
		logger.Errorf("初始化服务失败: %v", err)
		os.Exit(1)
	}
	defer application.Close()

	if !application.LLM.IsReady() {
		logger.Warn("LLM not ready; /api/generate will be rejected until a credential is configured", map[string]interface{}{
			"status": application.LLM.GetReadyState(),
		})
	}

	// 3. 设置路由
	server := api.SetupRouter(cfg, application.Generation, application.Metrics, application.Logger)

	logger.Info("Server listening", map[string]interface{}{
		"port": cfg.Port,
		"url":  "http://localhost:" + cfg.Port,
	})

	if err := runWithGracefulShutdown(server, cfg.Port, logger); err != nil {
		logger.Errorf("服务器异常退出: %v", err)
		application.Close()
		os.Exit(1)
	}
}

// runWithGracefulShutdown 启动服务器并在收到中断信号后优雅关闭
func runWithGracefulShutdown(server *api.Server, port string, logger *utils.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 等待中断信号以进行优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-quit:
	}

	logger.Info("Shutting down server", nil)
	server.Close()

	// 给定超时时间关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("Server stopped", nil)
	return nil
}
