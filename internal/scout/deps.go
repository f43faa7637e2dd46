package scout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/metrics"
	"github.com/betbot/coinjump/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "scout")

var one = decimal.NewFromInt(1)

// Deps 侦察引擎的协作方。History / Notifier 可选。
type Deps struct {
	Bridge     domain.Asset
	Coins      *domain.AssetSet
	Thresholds domain.ScoutThresholds

	Prices      ports.PriceOracle
	Balances    ports.BalanceOracle
	MinNotional ports.MinNotionalOracle
	Executor    ports.TradeExecutor
	State       ports.CoinStateStore
	Ratios      ports.RatioStore

	History  ports.HistoryRecorder
	Notifier ports.Notifier

	Now func() time.Time

	failures failureLog
}

// failureLog 同一换仓对连续失败时只在首次以 Warn 输出，之后降为 Debug，直到换仓对变化或成交
type failureLog struct {
	mu      sync.Mutex
	pair    string
	repeats int
}

// observe 记录一次失败，返回此前该换仓对已连续失败的次数
func (l *failureLog) observe(pair string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pair == pair {
		l.repeats++
	} else {
		l.pair, l.repeats = pair, 0
	}
	return l.repeats
}

func (l *failureLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pair, l.repeats = "", 0
}

func (d *Deps) validate() error {
	switch {
	case d == nil:
		return errors.New("scout: nil deps")
	case d.Bridge.IsZero():
		return errors.New("scout: bridge asset is required")
	case d.Coins == nil || d.Coins.Len() == 0:
		return errors.New("scout: supported coin set is empty")
	case d.Prices == nil, d.Balances == nil, d.MinNotional == nil:
		return errors.New("scout: price/balance/min-notional oracles are required")
	case d.Executor == nil:
		return errors.New("scout: trade executor is required")
	case d.State == nil || d.Ratios == nil:
		return errors.New("scout: coin state store and ratio store are required")
	}
	if !d.Bridge.IsBridge {
		d.Bridge = domain.NewBridge(d.Bridge.Symbol)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return nil
}

// resolve 把存储中读出的符号还原成带桥接标记的资产
func (d *Deps) resolve(a domain.Asset) domain.Asset {
	if a.Equal(d.Bridge) {
		return d.Bridge
	}
	if c, ok := d.Coins.Get(a.Symbol); ok {
		return c
	}
	return a
}

// knownAssets 支持集合 + 桥接资产（用于参考比率刷新）
func (d *Deps) knownAssets() []domain.Asset {
	return append(d.Coins.All(), d.Bridge)
}

// evaluate 以 from 为持仓、fromPrice 为其桥接价格，对每个候选做阈值判定。
// 返回判定列表以及本轮观测到的桥接价格表（含桥接资产自身 = 1）。
func (d *Deps) evaluate(ctx context.Context, from domain.Asset, fromPrice decimal.Decimal) ([]domain.Decision, map[string]decimal.Decimal, error) {
	now := d.Now()
	prices := map[string]decimal.Decimal{
		d.Bridge.Symbol: one,
		from.Symbol:     fromPrice,
	}
	decisions := make([]domain.Decision, 0, d.Coins.Len())

	for _, c := range d.Coins.All() {
		if c.Equal(from) {
			continue
		}
		price, ok, err := d.Prices.Quote(ctx, c, d.Bridge)
		if err != nil {
			return nil, nil, fmt.Errorf("quote %s: %w", c.PairSymbol(d.Bridge), err)
		}
		if !ok || !price.IsPositive() {
			log.Debugf("skip %s: price unavailable", c.PairSymbol(d.Bridge))
			continue
		}
		prices[c.Symbol] = price

		current := fromPrice.Div(price)
		ref, hasRef, err := d.Ratios.Ratio(ctx, from, c)
		if err != nil {
			return nil, nil, fmt.Errorf("load ratio %s/%s: %w", from, c, err)
		}
		dec := d.Thresholds.Evaluate(from, c, current, ref, hasRef, now)
		if !hasRef || !ref.IsPositive() {
			// 首次观测：记录参考比率
			if err := d.Ratios.SetRatio(ctx, from, c, current); err != nil {
				return nil, nil, fmt.Errorf("save ratio %s/%s: %w", from, c, err)
			}
		}
		log.Debug(dec.String())
		decisions = append(decisions, dec)
	}
	return decisions, prices, nil
}

// refreshRatios 换仓到 to 后刷新所有 C→to 的参考比率
func (d *Deps) refreshRatios(ctx context.Context, to domain.Asset, prices map[string]decimal.Decimal) {
	toPrice, ok := prices[to.Symbol]
	if !ok || !toPrice.IsPositive() {
		return
	}
	for _, c := range d.knownAssets() {
		if c.Equal(to) {
			continue
		}
		p, ok := prices[c.Symbol]
		if !ok {
			continue
		}
		if err := d.Ratios.SetRatio(ctx, c, to, p.Div(toPrice)); err != nil {
			log.Warnf("refresh ratio %s/%s: %v", c, to, err)
		}
	}
}

// convert 执行一次逻辑换仓并处理交易错误。
// 返回 moved=true 表示持仓已变化（成功或部分成功），reached 为实际持有的资产。
func (d *Deps) convert(ctx context.Context, from, to domain.Asset, out *domain.Outcome) (reached domain.Asset, moved bool, err error) {
	fill, err := d.Executor.Convert(ctx, from, to, domain.AmountAll)
	if err == nil {
		d.failures.reset()
		out.Fills = append(out.Fills, fill)
		d.recordTrade(ctx, fill)
		return to, true, nil
	}

	if errors.Is(err, domain.ErrOrderUnresolved) {
		return from, false, err
	}
	var partial *domain.PartialConversionError
	if errors.As(err, &partial) {
		metrics.TradeFailures.Add(1)
		out.Fills = append(out.Fills, partial.Fill)
		out.Kind = domain.OutcomeRetry
		out.Reason = err.Error()
		d.recordTrade(ctx, partial.Fill)
		d.failures.reset()
		log.Warnf("conversion %s->%s stopped at %s: %v", from, to, partial.Reached, partial.Err)
		return d.resolve(partial.Reached), true, nil
	}
	if errors.Is(err, domain.ErrTradeFailed) {
		metrics.TradeFailures.Add(1)
		out.Kind = domain.OutcomeRetry
		out.Reason = err.Error()
		if n := d.failures.observe(from.Symbol + "->" + to.Symbol); n == 0 {
			log.Warnf("conversion %s->%s failed, will retry next tick: %v", from, to, err)
		} else {
			log.Debugf("conversion %s->%s still failing (%d in a row): %v", from, to, n+1, err)
		}
		return from, false, nil
	}
	return from, false, err
}

func (d *Deps) recordTrade(ctx context.Context, fill domain.Fill) {
	if d.History == nil {
		return
	}
	if err := d.History.RecordTrade(ctx, fill); err != nil {
		log.Warnf("record trade %s: %v", fill.ID, err)
	}
}

func (d *Deps) recordScout(ctx context.Context, decisions []domain.Decision) {
	if d.History == nil || len(decisions) == 0 {
		return
	}
	if err := d.History.RecordScout(ctx, decisions); err != nil {
		log.Warnf("record scout history: %v", err)
	}
}

func (d *Deps) notify(ctx context.Context, title, body string) {
	if d.Notifier == nil {
		return
	}
	if err := d.Notifier.Notify(ctx, title, body); err != nil {
		log.Warnf("notify %q: %v", title, err)
	}
}
