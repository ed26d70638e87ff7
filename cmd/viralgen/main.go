// cmd/viralgen/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/Corphon/ViralGen/internal/app"
	"github.com/Corphon/ViralGen/internal/config"
	"github.com/Corphon/ViralGen/internal/display"
	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/utils"
)

// options 全局参数
type options struct {
	verbose  bool
	jsonOut  bool
	model    string
	provider string
	timeout  time.Duration
}

// formFlags 生成请求的三个输入
type formFlags struct {
	topic    string
	category string
	vibe     string
}

func (f *formFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.topic, "topic", "t", "", "video topic, e.g. \"Budget Travel Hacks\"")
	cmd.Flags().StringVarP(&f.category, "category", "c", string(models.CategoryTech), "content niche")
	cmd.Flags().StringVarP(&f.vibe, "vibe", "v", string(models.VibeHighEnergy), "tone of the copy")
}

func (f *formFlags) request() (models.GenerationRequest, error) {
	return models.GenerationForm{Topic: f.topic, Category: f.category, Vibe: f.vibe}.ToRequest()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "viralgen",
		Short: "Generate platform-ready short-video copy for Instagram, YouTube Shorts and X",
		Long: `viralgen asks a generative model for a caption and hashtags (Instagram Reels),
a title, description and tags (YouTube Shorts) and a tweet (X), all in one call.

The model is instructed to answer in a fixed delimiter format; whatever it
returns is decoded into the three groups, with placeholders where a piece
could not be recovered.

Credentials are read from the environment or a .env file
(GEMINI_API_KEY, or OPENROUTER_API_KEY with LLM_PROVIDER=openrouter).
Set HISTORY_DIR to keep successful generations on disk; by default
nothing is saved.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "log to stderr at debug level")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of formatted blocks")
	root.PersistentFlags().StringVar(&opts.provider, "provider", "", "override LLM_PROVIDER")
	root.PersistentFlags().StringVar(&opts.model, "model", "", "override LLM_MODEL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "override LLM_TIMEOUT")

	root.AddCommand(
		newGenerateCmd(opts),
		newPromptCmd(opts),
		newExtractCmd(opts),
		newOptionsCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// loadApp 加载配置并初始化服务；日志写到 stderr，不干扰输出
func loadApp(cmd *cobra.Command, opts *options) (*app.App, error) {
	if opts.provider != "" {
		os.Setenv("LLM_PROVIDER", opts.provider)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.timeout > 0 {
		cfg.RequestTimeout = opts.timeout
	}

	level := utils.WARNING
	cfg.LogLevel = "warn"
	if opts.verbose {
		level = utils.DEBUG
		cfg.LogLevel = "debug"
	}
	logger := utils.NewLogger(zapcore.AddSync(cmd.ErrOrStderr()), level)
	return app.New(cfg, logger)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, display.NewRenderer(os.Stderr).RenderError(err))
		os.Exit(1)
	}
}
