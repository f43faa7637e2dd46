// Package paper 模拟成交的交易所（dry run）：余额在内存中记账，价格来自真实行情
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "paper")

// DefaultFeeRate 现货 taker 手续费
var DefaultFeeRate = decimal.RequireFromString("0.001")

type Exchange struct {
	mu       sync.Mutex
	bridge   domain.Asset
	prices   ports.PriceOracle
	balances map[string]decimal.Decimal
	feeRate  decimal.Decimal
	now      func() time.Time
}

// New seed 为初始余额（symbol -> 数量）
func New(bridge domain.Asset, prices ports.PriceOracle, seed map[string]decimal.Decimal, feeRate decimal.Decimal) *Exchange {
	bridge.IsBridge = true
	if feeRate.IsNegative() {
		feeRate = decimal.Zero
	}
	balances := make(map[string]decimal.Decimal, len(seed))
	for sym, qty := range seed {
		if qty.IsPositive() {
			balances[domain.NormalizeSymbol(sym)] = qty
		}
	}
	return &Exchange{
		bridge:   bridge,
		prices:   prices,
		balances: balances,
		feeRate:  feeRate,
		now:      time.Now,
	}
}

// ParseBalances 解析配置中的字符串余额
func ParseBalances(raw map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for sym, v := range raw {
		qty, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("paper balance %s=%q: %w", sym, v, err)
		}
		out[domain.NormalizeSymbol(sym)] = qty
	}
	return out, nil
}

func (e *Exchange) FreeBalance(_ context.Context, asset domain.Asset) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[asset.Symbol], nil
}

// TotalBalance 模拟盘没有挂单冻结，与可用余额相同
func (e *Exchange) TotalBalance(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	return e.FreeBalance(ctx, asset)
}

func (e *Exchange) bridgePrice(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	if asset.Equal(e.bridge) {
		return decimal.NewFromInt(1), nil
	}
	p, ok, err := e.prices.Quote(ctx, asset, e.bridge)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", domain.ErrTradeFailed, asset.PairSymbol(e.bridge))
	}
	return p, nil
}

// Convert 以当前价即时成交；每一腿扣除一次手续费
func (e *Exchange) Convert(ctx context.Context, from, to domain.Asset, amount domain.Amount) (domain.Fill, error) {
	if from.Equal(to) {
		return domain.Fill{}, fmt.Errorf("%w: %s->%s is not a conversion", domain.ErrTradeFailed, from, to)
	}
	fromPrice, err := e.bridgePrice(ctx, from)
	if err != nil {
		return domain.Fill{}, err
	}
	toPrice, err := e.bridgePrice(ctx, to)
	if err != nil {
		return domain.Fill{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	held := e.balances[from.Symbol]
	qty := amount.Quantity()
	if amount.IsAll() {
		qty = held
	}
	if !qty.IsPositive() {
		return domain.Fill{}, fmt.Errorf("%w: nothing to convert from %s", domain.ErrTradeFailed, from)
	}
	if qty.GreaterThan(held) {
		return domain.Fill{}, fmt.Errorf("%w: insufficient %s: have %s, need %s", domain.ErrTradeFailed, from, held, qty)
	}

	keep := decimal.NewFromInt(1).Sub(e.feeRate)
	value := qty.Mul(fromPrice)
	legs := 2
	if from.Equal(e.bridge) || to.Equal(e.bridge) {
		legs = 1
	}
	for i := 0; i < legs; i++ {
		value = value.Mul(keep)
	}
	got := value.Div(toPrice)

	e.balances[from.Symbol] = held.Sub(qty)
	if e.balances[from.Symbol].IsZero() {
		delete(e.balances, from.Symbol)
	}
	e.balances[to.Symbol] = e.balances[to.Symbol].Add(got)

	fill := domain.NewFill(from, to, qty, got, e.now())
	log.Infof("paper fill %s %s -> %s %s", qty, from, got.StringFixed(8), to)
	return fill, nil
}
