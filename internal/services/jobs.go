package services

import (
	"context"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/ports"
	"github.com/shopspring/decimal"
)

const (
	ValueSnapshotEvery  = time.Minute
	ScoutPruneEvery     = time.Minute
	ValuePruneEvery     = time.Hour
	StatusSyncEvery     = 30 * time.Second
	DefaultValueHistory = 30 * 24 * time.Hour
)

// Ticker 单次侦察（scout.Engine）
type Ticker interface {
	Tick(ctx context.Context) error
}

// Syncer 状态页缓存刷新（dashboard.Board）
type Syncer interface {
	Sync(ctx context.Context) error
}

// Jobs 组装机器人的周期任务
type Jobs struct {
	Engine     Ticker
	ScoutEvery time.Duration

	Snapshot ports.SnapshotReader
	Bridge   domain.Asset
	Prices   ports.PriceOracle
	Balances ports.BalanceOracle

	History        ports.HistoryRecorder // 为 nil 时不记录价值/不清理历史
	ScoutRetention time.Duration
	ValueRetention time.Duration
	Board          Syncer // 为 nil 时不启动状态同步

	Now func() time.Time
}

func (j Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// Build 按固定间隔生成任务列表
func (j Jobs) Build() []Job {
	jobs := []Job{{
		Name:      "scout",
		Every:     j.ScoutEvery,
		Immediate: true,
		Critical:  true,
		Run:       j.Engine.Tick,
	}}
	if j.History != nil {
		jobs = append(jobs,
			Job{Name: "value_snapshot", Every: ValueSnapshotEvery, Run: j.RecordValue},
			Job{Name: "prune_scout_history", Every: ScoutPruneEvery, Run: j.PruneScoutHistory},
			Job{Name: "prune_value_history", Every: ValuePruneEvery, Run: j.PruneValueHistory},
		)
	}
	if j.Board != nil {
		jobs = append(jobs, Job{Name: "status_sync", Every: StatusSyncEvery, Immediate: true, Run: j.Board.Sync})
	}
	return jobs
}

// RecordValue 记录当前持仓的桥接计价
func (j Jobs) RecordValue(ctx context.Context) error {
	snap := j.Snapshot.Snapshot()
	if !snap.HasAsset {
		return nil
	}
	asset := snap.CurrentAsset
	qty, err := j.Balances.TotalBalance(ctx, asset)
	if err != nil {
		return err
	}
	price := decimal.NewFromInt(1)
	if !asset.Equal(j.Bridge) {
		p, ok, err := j.Prices.Quote(ctx, asset, j.Bridge)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		price = p
	}
	return j.History.RecordValue(ctx, domain.ValuePoint{
		Asset:       asset,
		Balance:     qty,
		BridgeValue: qty.Mul(price),
		Time:        j.now(),
	})
}

func (j Jobs) PruneScoutHistory(ctx context.Context) error {
	n, err := j.History.PruneScoutHistory(ctx, j.now().Add(-j.ScoutRetention))
	if err != nil {
		return err
	}
	if n > 0 {
		schedLog.Debugf("清理 scout 历史 %d 条", n)
	}
	return nil
}

func (j Jobs) PruneValueHistory(ctx context.Context) error {
	retention := j.ValueRetention
	if retention <= 0 {
		retention = DefaultValueHistory
	}
	n, err := j.History.PruneValueHistory(ctx, j.now().Add(-retention))
	if err != nil {
		return err
	}
	if n > 0 {
		schedLog.Infof("清理价值历史 %d 条", n)
	}
	return nil
}
