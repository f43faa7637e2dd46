package ports

import (
	"context"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/shopspring/decimal"
)

// Small capability interfaces shared across layers (scout/exchange/services).
// 所有调用均为同步调用，超时由实现方负责。

type PriceOracle interface {
	// Quote returns price(base→quote). ok=false means the pair is unavailable (not an error).
	Quote(ctx context.Context, base, quote domain.Asset) (price decimal.Decimal, ok bool, err error)
}

type BalanceOracle interface {
	FreeBalance(ctx context.Context, asset domain.Asset) (decimal.Decimal, error)
	TotalBalance(ctx context.Context, asset domain.Asset) (decimal.Decimal, error)
}

type MinNotionalOracle interface {
	MinNotional(ctx context.Context, base, quote domain.Asset) (decimal.Decimal, error)
}

type TradeExecutor interface {
	// Convert is one logical conversion; routing through the bridge is the executor's job.
	// Clean failures wrap domain.ErrTradeFailed; a half-done bridged conversion returns
	// *domain.PartialConversionError; an order without terminal state wraps domain.ErrOrderUnresolved.
	Convert(ctx context.Context, from, to domain.Asset, amount domain.Amount) (domain.Fill, error)
}
