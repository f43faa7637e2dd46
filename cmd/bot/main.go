package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/betbot/coinjump/internal/app"
	"github.com/betbot/coinjump/pkg/config"
	"github.com/betbot/coinjump/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func firstExistingFile(paths ...string) (string, bool) {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json, .toml）")
	envFile := flag.String("env", ".env", "环境变量文件（不存在则忽略）")
	dryRun := flag.Bool("dry-run", false, "纸交易模式（覆盖配置）")
	flag.Parse()

	if err := logger.InitDefault(); err != nil {
		panic(fmt.Sprintf("初始化日志失败: %v", err))
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("加载 %s 失败: %v", *envFile, err)
	}

	path := *configPath
	if path == "" {
		if p, ok := firstExistingFile("config.yaml", "config.yml", "config.toml", "config.json"); ok {
			path = p
			logrus.Infof("使用默认配置文件: %s", p)
		} else {
			logrus.Warn("未指定配置文件，将使用环境变量和默认值")
		}
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		logrus.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		logrus.Errorf("配置无效: %v", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
		Compress:   true,
	}); err != nil {
		logrus.Errorf("初始化日志失败: %v", err)
		os.Exit(1)
	}
	defer logger.Close()

	bot, err := app.BuildApp(cfg)
	if err != nil {
		logrus.Errorf("初始化失败: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil {
		logrus.Errorf("机器人因致命错误停止: %v", err)
		stop()
		_ = logger.Close()
		os.Exit(1)
	}
	logrus.Info("已停止")
}
