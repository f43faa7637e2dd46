package scout

import (
	"context"
	"fmt"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/metrics"
	"github.com/shopspring/decimal"
)

// RatioScout 换仓决策：比较当前交叉比率与参考比率，选出最优候选并执行换仓
type RatioScout struct {
	deps   *Deps
	bridge *BridgeScout
}

func NewRatioScout(deps *Deps) (*RatioScout, error) {
	bridge, err := NewBridgeScout(deps)
	if err != nil {
		return nil, err
	}
	return &RatioScout{deps: deps, bridge: bridge}, nil
}

// Scout 执行一次侦察。价格不可用返回 skipped，没有候选返回 no_op（均非错误）。
func (s *RatioScout) Scout(ctx context.Context) (domain.Outcome, error) {
	d := s.deps
	held, ok, err := d.State.CurrentCoin(ctx)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("load current coin: %w", err)
	}
	if !ok {
		return domain.Outcome{}, domain.ErrNotInitialized
	}
	held = d.resolve(held)

	// 持有桥接资产：不做粉尘检查，直接枚举候选
	if held.IsBridge {
		return s.jumpFrom(ctx, held, one)
	}

	price, ok, err := d.Prices.Quote(ctx, held, d.Bridge)
	if err != nil {
		return domain.Outcome{From: held}, fmt.Errorf("quote %s: %w", held.PairSymbol(d.Bridge), err)
	}
	if !ok || !price.IsPositive() {
		log.Infof("skipping scout: %s price unavailable", held.PairSymbol(d.Bridge))
		return domain.Outcome{Kind: domain.OutcomeSkipped, From: held, Reason: "price unavailable"}, nil
	}

	balance, err := d.Balances.TotalBalance(ctx, held)
	if err != nil {
		return domain.Outcome{From: held}, fmt.Errorf("balance %s: %w", held, err)
	}
	minNotional, err := d.MinNotional.MinNotional(ctx, held, d.Bridge)
	if err != nil {
		return domain.Outcome{From: held}, fmt.Errorf("min notional %s: %w", held.PairSymbol(d.Bridge), err)
	}
	value := balance.Mul(price)
	if value.LessThan(domain.DustFactor.Mul(minNotional)) {
		log.Infof("stuck state: %s value %s below %s x min notional %s, starting bridge scout",
			held, value.StringFixed(4), domain.DustFactor, minNotional)
		_, out, err := s.bridge.Run(ctx, held)
		return out, err
	}

	return s.jumpFrom(ctx, held, price)
}

// jumpFrom 以 from 为持仓评估所有候选，存在赢家时执行换仓
func (s *RatioScout) jumpFrom(ctx context.Context, from domain.Asset, fromPrice decimal.Decimal) (domain.Outcome, error) {
	d := s.deps
	out := domain.Outcome{From: from}

	decisions, prices, err := d.evaluate(ctx, from, fromPrice)
	if err != nil {
		return out, err
	}
	out.Decisions = decisions
	d.recordScout(ctx, decisions)

	winner, found := domain.PickWinner(decisions)
	if !found {
		out.Kind = domain.OutcomeNoOp
		log.Debugf("no candidate above threshold %s for %s", d.Thresholds.Required(), from)
		return out, nil
	}
	out.Winner = &winner
	out.To = winner.To
	log.Infof("will jump %s -> %s (%s)", from, winner.To, winner)

	reached, moved, err := d.convert(ctx, from, winner.To, &out)
	if err != nil {
		return out, err
	}
	if !moved {
		return out, nil
	}
	if err := d.State.SetCurrentCoin(ctx, reached); err != nil {
		return out, fmt.Errorf("save current coin %s: %w", reached, err)
	}
	out.HoldingMoved = true
	if !reached.Equal(winner.To) {
		// 部分成交：停在桥接资产，下个 tick 从桥接资产继续
		return out, nil
	}

	out.Kind = domain.OutcomeJumped
	metrics.Jumps.Add(1)
	d.refreshRatios(ctx, winner.To, prices)
	d.notify(ctx, "jump", fmt.Sprintf("%s -> %s at ratio %s", from, winner.To, winner.Current.StringFixed(8)))
	return out, nil
}
