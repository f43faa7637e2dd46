package ports

import (
	"context"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/shopspring/decimal"
)

// CoinStateStore 持久化唯一的当前持仓
type CoinStateStore interface {
	CurrentCoin(ctx context.Context) (domain.Asset, bool, error)
	SetCurrentCoin(ctx context.Context, asset domain.Asset) error
}

// RatioStore 有序交易对的参考比率（只在观测时刷新，不会自动衰减）
type RatioStore interface {
	Ratio(ctx context.Context, from, to domain.Asset) (decimal.Decimal, bool, error)
	SetRatio(ctx context.Context, from, to domain.Asset, ratio decimal.Decimal) error
}

// HistoryRecorder 成交/侦察/价值历史（可选能力，只有 sqlite 后端实现）
type HistoryRecorder interface {
	RecordTrade(ctx context.Context, fill domain.Fill) error
	RecordScout(ctx context.Context, decisions []domain.Decision) error
	RecordValue(ctx context.Context, point domain.ValuePoint) error
	RecentTrades(ctx context.Context, limit int) ([]domain.Fill, error)
	PruneScoutHistory(ctx context.Context, olderThan time.Time) (int64, error)
	PruneValueHistory(ctx context.Context, olderThan time.Time) (int64, error)
}

// Notifier 运营通知（失败只记录日志）
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// SnapshotReader 只读快照访问（不阻塞写入方）
type SnapshotReader interface {
	Snapshot() domain.Snapshot
}
