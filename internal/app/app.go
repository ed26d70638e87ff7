// internal/app/app.go
package app

import (
	"fmt"
	"path/filepath"

	"github.com/Corphon/ViralGen/internal/config"
	"github.com/Corphon/ViralGen/internal/protocol"
	"github.com/Corphon/ViralGen/internal/services"
	"github.com/Corphon/ViralGen/internal/storage"
	"github.com/Corphon/ViralGen/internal/utils"

	// 注册LLM提供者
	_ "github.com/Corphon/ViralGen/internal/llm/providers/google"
	_ "github.com/Corphon/ViralGen/internal/llm/providers/openrouter"
)

// App 按依赖顺序组装好的服务
type App struct {
	Config     *config.Config
	Logger     *utils.Logger
	Metrics    *utils.GenerationMetrics
	LLM        *services.LLMService
	Generation *services.GenerationService
	History    *services.HistoryService

	store *storage.FileStorage
}

// New 初始化所有服务。logger 为 nil 时使用全局日志并按配置写入日志文件。
func New(cfg *config.Config, logger *utils.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置为空")
	}

	if logger == nil {
		logger = utils.GetLogger()
		if cfg.LogDir != "" {
			if err := utils.InitLogger(filepath.Join(cfg.LogDir, "viralgen.log")); err != nil {
				return nil, fmt.Errorf("初始化日志失败: %w", err)
			}
		}
	}
	logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))

	metrics := utils.NewGenerationMetrics(utils.GetMetricsCollector(), logger)
	llmService := services.NewLLMService(cfg, metrics, logger)
	generation := services.NewGenerationService(llmService, protocol.DefaultGrammar(), metrics, logger)

	var (
		store   *storage.FileStorage
		history *services.HistoryService
	)
	if cfg.HistoryDir != "" {
		var err error
		store, err = storage.NewFileStorage(cfg.HistoryDir)
		if err != nil {
			return nil, fmt.Errorf("初始化历史存储失败: %w", err)
		}
		history = services.NewHistoryService(store, cfg.HistoryMax, logger)
		generation.SetHistory(history)
	}

	logger.Info("Services initialized", map[string]interface{}{
		"provider": cfg.LLMProvider,
		"models":   cfg.Models(),
		"ready":    llmService.IsReady(),
		"history":  cfg.HistoryDir,
	})

	return &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		LLM:        llmService,
		Generation: generation,
		History:    history,
		store:      store,
	}, nil
}

// Close 停止存储清理并刷新日志
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.Logger.Sync()
}
