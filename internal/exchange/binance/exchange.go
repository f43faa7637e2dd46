package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/pkg/cache"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	rulesTTL            = 10 * time.Minute
	defaultOrderTimeout = 5 * time.Minute
	defaultPollInterval = time.Second
	quotePrecision      = 8
)

// Exchange Binance 现货适配器：PriceOracle / BalanceOracle / MinNotionalOracle / TradeExecutor
type Exchange struct {
	api    spotAPI
	bridge domain.Asset

	sellTimeout  time.Duration
	buyTimeout   time.Duration
	pollInterval time.Duration

	rules *cache.InMemoryCache[string, symbolRules]
	now   func() time.Time
}

// NewExchange 创建 REST 适配器
func NewExchange(cfg Config, bridge domain.Asset) *Exchange {
	return newExchange(newRestAPI(cfg), cfg, bridge)
}

func newExchange(api spotAPI, cfg Config, bridge domain.Asset) *Exchange {
	bridge.IsBridge = true
	e := &Exchange{
		api:          api,
		bridge:       bridge,
		sellTimeout:  cfg.SellTimeout,
		buyTimeout:   cfg.BuyTimeout,
		pollInterval: cfg.PollInterval,
		rules:        cache.NewInMemoryCache[string, symbolRules](rulesTTL),
		now:          time.Now,
	}
	if e.sellTimeout <= 0 {
		e.sellTimeout = defaultOrderTimeout
	}
	if e.buyTimeout <= 0 {
		e.buyTimeout = defaultOrderTimeout
	}
	if e.pollInterval <= 0 {
		e.pollInterval = defaultPollInterval
	}
	return e
}

// Close 释放缓存清理协程
func (e *Exchange) Close() {
	e.rules.Close()
}

func (e *Exchange) Quote(ctx context.Context, base, quote domain.Asset) (decimal.Decimal, bool, error) {
	if base.Equal(quote) {
		return decimal.NewFromInt(1), true, nil
	}
	price, ok, err := e.api.Price(ctx, base.PairSymbol(quote))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("quote %s: %w", base.PairSymbol(quote), err)
	}
	if !ok || !price.IsPositive() {
		return decimal.Zero, false, nil
	}
	return price, true, nil
}

func (e *Exchange) FreeBalance(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	balances, err := e.api.Balances(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("account balances: %w", err)
	}
	return balances[asset.Symbol].Free, nil
}

func (e *Exchange) TotalBalance(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	balances, err := e.api.Balances(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("account balances: %w", err)
	}
	b := balances[asset.Symbol]
	return b.Free.Add(b.Locked), nil
}

func (e *Exchange) MinNotional(ctx context.Context, base, quote domain.Asset) (decimal.Decimal, error) {
	r, err := e.symbolRules(ctx, base.PairSymbol(quote))
	if err != nil {
		return decimal.Zero, err
	}
	return r.MinNotional, nil
}

func (e *Exchange) symbolRules(ctx context.Context, symbol string) (symbolRules, error) {
	if r, ok := e.rules.Get(symbol); ok {
		return r, nil
	}
	r, ok, err := e.api.Rules(ctx, symbol)
	if err != nil {
		return symbolRules{}, fmt.Errorf("exchange info %s: %w", symbol, err)
	}
	if !ok {
		return symbolRules{}, fmt.Errorf("exchange info %s: symbol not listed", symbol)
	}
	e.rules.Set(symbol, r, rulesTTL)
	return r, nil
}

// Convert 单次逻辑换仓。非桥接资产之间经由桥接资产两腿完成。
func (e *Exchange) Convert(ctx context.Context, from, to domain.Asset, amount domain.Amount) (domain.Fill, error) {
	switch {
	case from.Equal(to):
		return domain.Fill{}, fmt.Errorf("%w: %s->%s is not a conversion", domain.ErrTradeFailed, from, to)
	case to.Equal(e.bridge):
		sold, got, err := e.sell(ctx, from, amount)
		if err != nil {
			return domain.Fill{}, err
		}
		return domain.NewFill(from, e.bridge, sold, got, e.now()), nil
	case from.Equal(e.bridge):
		spent, got, err := e.buy(ctx, to, amount)
		if err != nil {
			return domain.Fill{}, err
		}
		return domain.NewFill(e.bridge, to, spent, got, e.now()), nil
	}

	sold, proceeds, err := e.sell(ctx, from, amount)
	if err != nil {
		return domain.Fill{}, err
	}
	first := domain.NewFill(from, e.bridge, sold, proceeds, e.now())

	_, got, err := e.buy(ctx, to, domain.AmountOf(proceeds))
	if err != nil {
		return domain.Fill{}, &domain.PartialConversionError{
			From:    from,
			Reached: e.bridge,
			Target:  to,
			Fill:    first,
			Err:     err,
		}
	}
	return domain.NewFill(from, to, sold, got, e.now()), nil
}

// sell 市价卖出 asset 换取桥接资产，返回 (卖出数量, 获得桥接数量)
func (e *Exchange) sell(ctx context.Context, asset domain.Asset, amount domain.Amount) (decimal.Decimal, decimal.Decimal, error) {
	symbol := asset.PairSymbol(e.bridge)
	rules, err := e.symbolRules(ctx, symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	qty := amount.Quantity()
	if amount.IsAll() {
		if qty, err = e.FreeBalance(ctx, asset); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}
	qty = roundDownToStep(qty, rules.StepSize)
	if !qty.IsPositive() || qty.LessThan(rules.MinQty) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: sell %s qty %s below lot size", domain.ErrTradeFailed, symbol, qty)
	}
	if rules.MinNotional.IsPositive() {
		if price, ok, err := e.Quote(ctx, asset, e.bridge); err == nil && ok && qty.Mul(price).LessThan(rules.MinNotional) {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: sell %s notional below %s", domain.ErrTradeFailed, symbol, rules.MinNotional)
		}
	}

	clientID := uuid.NewString()
	log.Infof("sell %s qty=%s client_id=%s", symbol, qty, clientID)
	placed, err := e.api.MarketSell(ctx, symbol, clientID, qty)
	if err != nil {
		if placed, err = e.recoverSubmit(ctx, symbol, clientID, err); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("sell: %w", err)
		}
	}
	final, err := e.waitOrder(ctx, symbol, placed, e.sellTimeout)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return final.ExecutedQty, final.QuoteQty, nil
}

// buy 用桥接资产市价买入 asset，返回 (花费桥接数量, 获得数量)
func (e *Exchange) buy(ctx context.Context, asset domain.Asset, amount domain.Amount) (decimal.Decimal, decimal.Decimal, error) {
	symbol := asset.PairSymbol(e.bridge)
	rules, err := e.symbolRules(ctx, symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	spend := amount.Quantity()
	if amount.IsAll() {
		if spend, err = e.FreeBalance(ctx, e.bridge); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}
	spend = spend.Truncate(quotePrecision)
	if !spend.IsPositive() || spend.LessThan(rules.MinNotional) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: buy %s with %s %s below min notional %s",
			domain.ErrTradeFailed, symbol, spend, e.bridge, rules.MinNotional)
	}

	clientID := uuid.NewString()
	log.Infof("buy %s quote=%s client_id=%s", symbol, spend, clientID)
	placed, err := e.api.MarketBuy(ctx, symbol, clientID, spend)
	if err != nil {
		if placed, err = e.recoverSubmit(ctx, symbol, clientID, err); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("buy: %w", err)
		}
	}
	final, err := e.waitOrder(ctx, symbol, placed, e.buyTimeout)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return final.QuoteQty, final.ExecutedQty, nil
}

func roundDownToStep(qty, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}
