// Package dashboard 只读状态页：当前持仓、桥接计价余额、最近成交
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "dashboard")

const recentTradesLimit = 5

type TradeView struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	FromQty string    `json:"from_qty"`
	ToQty   string    `json:"to_qty"`
	Price   string    `json:"price"`
	Time    time.Time `json:"time"`
}

type Status struct {
	CurrentCoin  string      `json:"current_coin"`
	Bridge       string      `json:"bridge"`
	Holding      string      `json:"holding"`
	Balance      string      `json:"balance"` // 按桥接资产计价
	LastUpdate   time.Time   `json:"last_update"`
	LastTickAt   time.Time   `json:"last_tick_at"`
	LastOutcome  string      `json:"last_outcome"`
	LastError    string      `json:"last_error,omitempty"`
	LastDecision string      `json:"last_decision,omitempty"`
	IsActive     bool        `json:"is_active"`
	Trades       []TradeView `json:"last_trades"`
}

// Board 周期同步并缓存状态；HTTP 读取缓存，不触达交易所
type Board struct {
	bridge   domain.Asset
	snapshot ports.SnapshotReader
	prices   ports.PriceOracle
	balances ports.BalanceOracle
	history  ports.HistoryRecorder // 可为 nil
	staleAt  time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	status Status
}

// NewBoard staleAfter 内没有 tick 视为不活跃
func NewBoard(bridge domain.Asset, snapshot ports.SnapshotReader, prices ports.PriceOracle,
	balances ports.BalanceOracle, history ports.HistoryRecorder, staleAfter time.Duration) *Board {
	if staleAfter <= 0 {
		staleAfter = time.Minute
	}
	return &Board{
		bridge:   bridge,
		snapshot: snapshot,
		prices:   prices,
		balances: balances,
		history:  history,
		staleAt:  staleAfter,
		now:      time.Now,
		status:   Status{Bridge: bridge.Symbol, Trades: []TradeView{}},
	}
}

// Sync 刷新缓存状态。余额/价格读取失败时保留上一次的值。
func (b *Board) Sync(ctx context.Context) error {
	now := b.now()
	snap := b.snapshot.Snapshot()

	b.mu.RLock()
	st := b.status
	b.mu.RUnlock()

	st.Bridge = b.bridge.Symbol
	st.LastUpdate = now
	st.LastTickAt = snap.LastTickAt
	st.LastOutcome = string(snap.LastOutcome)
	st.LastError = snap.LastError
	st.LastDecision = ""
	if snap.LastDecision != nil {
		st.LastDecision = snap.LastDecision.String()
	}
	st.IsActive = !snap.LastTickAt.IsZero() && now.Sub(snap.LastTickAt) <= b.staleAt

	var syncErr error
	if snap.HasAsset {
		st.CurrentCoin = snap.CurrentAsset.Symbol
		if v, qty, err := b.holdingValue(ctx, snap.CurrentAsset); err != nil {
			syncErr = err
			log.WithError(err).Warn("sync holding value")
		} else {
			st.Holding = qty.String()
			st.Balance = v.StringFixed(2)
		}
	}

	if b.history != nil {
		fills, err := b.history.RecentTrades(ctx, recentTradesLimit)
		if err != nil {
			log.WithError(err).Warn("load recent trades")
		} else {
			st.Trades = toTradeViews(fills)
		}
	}

	b.mu.Lock()
	b.status = st
	b.mu.Unlock()
	return syncErr
}

func (b *Board) holdingValue(ctx context.Context, asset domain.Asset) (decimal.Decimal, decimal.Decimal, error) {
	qty, err := b.balances.TotalBalance(ctx, asset)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if asset.Equal(b.bridge) {
		return qty, qty, nil
	}
	price, ok, err := b.prices.Quote(ctx, asset, b.bridge)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, qty, nil
	}
	return qty.Mul(price), qty, nil
}

// Status 返回缓存状态副本
func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := b.status
	st.Trades = append([]TradeView(nil), b.status.Trades...)
	return st
}

func toTradeViews(fills []domain.Fill) []TradeView {
	out := make([]TradeView, 0, len(fills))
	for _, f := range fills {
		out = append(out, TradeView{
			From:    f.From.Symbol,
			To:      f.To.Symbol,
			FromQty: f.FromQty.String(),
			ToQty:   f.ToQty.String(),
			Price:   f.Price.String(),
			Time:    f.Time,
		})
	}
	return out
}
