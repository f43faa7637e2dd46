package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var schedLog = logrus.WithField("component", "scheduler")

// Job 周期任务
type Job struct {
	Name      string
	Every     time.Duration
	Immediate bool // 启动时先执行一次
	Critical  bool // 返回错误时停止整个调度器
	Run       func(ctx context.Context) error
}

// Scheduler 每个 Job 独立 goroutine；同一 Job 串行执行，不会重叠
type Scheduler struct {
	jobs []Job
}

func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Run 阻塞直到 ctx 取消（返回 nil）或关键任务失败（返回该错误）
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		if job.Run == nil || job.Every <= 0 {
			schedLog.Warnf("跳过无效任务: %s", job.Name)
			continue
		}
		job := job
		g.Go(func() error { return runJob(gctx, job) })
	}
	err := g.Wait()
	if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		return nil
	}
	return err
}

func runJob(ctx context.Context, job Job) error {
	schedLog.Debugf("任务启动: %s every=%s", job.Name, job.Every)
	if job.Immediate {
		if err := runOnce(ctx, job); err != nil {
			return err
		}
	}
	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := runOnce(ctx, job); err != nil {
			return err
		}
	}
}

func runOnce(ctx context.Context, job Job) error {
	err := job.Run(ctx)
	if err == nil {
		return nil
	}
	if job.Critical {
		schedLog.WithError(err).Errorf("关键任务失败，停止调度: %s", job.Name)
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	schedLog.WithError(err).Warnf("任务失败: %s", job.Name)
	return nil
}
