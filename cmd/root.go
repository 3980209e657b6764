// Package cmd 命令行入口
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weiwangfds/racenotes/config"
	"github.com/weiwangfds/racenotes/internal/i18n"
	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/service/cache"
)

// app 子命令共享的配置, 由根命令的 PersistentPreRunE 加载
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// RootCommand 创建根命令
func RootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "racenotes",
		Short:         "Racing notes service",
		Long:          "Capture race engineering notes against a remote database, with an offline mirror and outbox when it is unreachable.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level: debug, info, warn, error")

	rootCmd.AddCommand(
		serveCommand(a),
		outboxCommand(a),
		cacheCommand(a),
		uploadCommand(a),
	)
	return rootCmd
}

// Execute 运行根命令, 出错时以非零状态退出
func Execute() {
	if err := RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := logger.Init(&cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cfg.App.Language != "" {
		i18n.GetInstance().SetDefaultLanguage(cfg.App.Language)
	}
	a.cfg = cfg
	return nil
}

// openCache 打开磁盘缓存, 供一次性命令使用
// 服务运行时缓存目录被占用, 命令会返回错误而不是退化为内存缓存
func (a *app) openCache() (*cache.OfflineCache, error) {
	c, err := cache.Open(a.cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache at %s: %w", a.cfg.Cache.Dir, err)
	}
	return c, nil
}
