// Package app 组装并运行机器人：调度器、状态页、debug 服务、价格流
package app

import (
	"context"
	"time"

	"github.com/betbot/coinjump/internal/dashboard"
	"github.com/betbot/coinjump/internal/metrics"
	"github.com/betbot/coinjump/internal/scout"
	"github.com/betbot/coinjump/internal/services"
	"github.com/betbot/coinjump/pkg/config"
	"github.com/betbot/coinjump/pkg/shutdown"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var log = logrus.WithField("component", "app")

const gracefulShutdownPeriod = 5 * time.Second

type App struct {
	cfg      *config.Config
	engine   *scout.Engine
	market   *Market
	board    *dashboard.Board
	jobs     services.Jobs
	shutdown *shutdown.Manager
}

func newApp(cfg *config.Config, engine *scout.Engine, m *Market, board *dashboard.Board,
	jobs services.Jobs, sm *shutdown.Manager) *App {
	return &App{
		cfg:      cfg,
		engine:   engine,
		market:   m,
		board:    board,
		jobs:     jobs,
		shutdown: sm,
	}
}

// Engine 暴露给命令行工具（一次性 tick 等）
func (a *App) Engine() *scout.Engine { return a.engine }

// Run 阻塞直到 ctx 取消（返回 nil）或出现致命错误
func (a *App) Run(ctx context.Context) error {
	defer a.Shutdown()

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.MetricsListen != "" {
		if _, err := metrics.StartAsync(gctx, a.cfg.MetricsListen); err != nil {
			log.WithError(err).Warn("debug server 启动失败")
		}
	}

	if a.market.Stream != nil {
		a.market.Stream.Start()
	}

	if a.board != nil {
		srv := dashboard.NewServer(a.board)
		g.Go(func() error {
			// 状态页失败不影响交易
			if err := srv.Run(gctx, a.cfg.Dashboard.Listen); err != nil {
				log.WithError(err).Error("dashboard stopped")
			}
			return nil
		})
	}

	scheduler := services.NewScheduler(a.jobs.Build()...)
	g.Go(func() error { return scheduler.Run(gctx) })

	log.Infof("coinjump 已启动: bridge=%s sleep=%s dry_run=%v",
		a.cfg.Bridge, a.cfg.ScoutSleepTime, a.cfg.DryRun)
	return g.Wait()
}

// Shutdown 关闭价格流、交易所缓存与存储（有超时）
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
	defer cancel()
	a.shutdown.Shutdown(ctx)
}
