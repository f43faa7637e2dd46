package scout

import (
	"context"
	"fmt"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/metrics"
)

// BridgeScout 粉尘回退：把卡死的小额持仓换回桥接资产，再从桥接资产寻找新目标
type BridgeScout struct {
	deps *Deps
}

func NewBridgeScout(deps *Deps) (*BridgeScout, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &BridgeScout{deps: deps}, nil
}

// Run 对持仓 held 执行回退。返回值为新的目标资产（仅当换入候选成功时非 nil）。
// 当前持仓只在最后写一次：换入候选成功为候选，否则为桥接资产。
func (b *BridgeScout) Run(ctx context.Context, held domain.Asset) (*domain.Asset, domain.Outcome, error) {
	d := b.deps
	out := domain.Outcome{From: held, BridgeScout: true}
	metrics.BridgeScouts.Add(1)

	free, err := d.Balances.FreeBalance(ctx, held)
	if err != nil {
		return nil, out, fmt.Errorf("free balance %s: %w", held, err)
	}
	minNotional, err := d.MinNotional.MinNotional(ctx, held, d.Bridge)
	if err != nil {
		return nil, out, fmt.Errorf("min notional %s: %w", held.PairSymbol(d.Bridge), err)
	}
	if free.GreaterThan(minNotional) {
		out.Kind = domain.OutcomeNoOp
		out.Reason = "balance above min notional"
		log.Infof("bridge scout skipped: %s balance %s > min notional %s", held, free, minNotional)
		return nil, out, nil
	}

	reached, moved, err := d.convert(ctx, held, d.Bridge, &out)
	if err != nil || !moved {
		return nil, out, err
	}
	out.To = reached

	target, err := b.pickTarget(ctx, &out)
	if err != nil {
		// 已换成桥接资产：先落盘再上报
		if setErr := d.State.SetCurrentCoin(ctx, d.Bridge); setErr != nil {
			return nil, out, fmt.Errorf("save current coin %s: %w (after %v)", d.Bridge, setErr, err)
		}
		out.HoldingMoved = true
		return nil, out, err
	}

	final := d.Bridge
	if target != nil {
		final = *target
	}
	if err := d.State.SetCurrentCoin(ctx, final); err != nil {
		return nil, out, fmt.Errorf("save current coin %s: %w", final, err)
	}
	out.HoldingMoved = true
	out.To = final

	if target == nil {
		if out.Kind != domain.OutcomeRetry {
			out.Kind = domain.OutcomeBridged
		}
		d.notify(ctx, "bridged", fmt.Sprintf("%s converted to %s, waiting for a candidate", held, d.Bridge))
		return nil, out, nil
	}
	out.Kind = domain.OutcomeJumped
	metrics.Jumps.Add(1)
	d.notify(ctx, "jump", fmt.Sprintf("%s -> %s via bridge fallback", held, final))
	return target, out, nil
}

// pickTarget 从桥接资产出发评估候选（与 RatioScout 相同的阈值判定），命中则买入
func (b *BridgeScout) pickTarget(ctx context.Context, out *domain.Outcome) (*domain.Asset, error) {
	d := b.deps
	decisions, prices, err := d.evaluate(ctx, d.Bridge, one)
	if err != nil {
		return nil, err
	}
	out.Decisions = decisions
	d.recordScout(ctx, decisions)

	winner, found := domain.PickWinner(decisions)
	if !found {
		log.Infof("bridge scout: no candidate above threshold, holding %s", d.Bridge)
		return nil, nil
	}
	out.Winner = &winner

	reached, moved, err := d.convert(ctx, d.Bridge, winner.To, out)
	if err != nil {
		return nil, err
	}
	if !moved || !reached.Equal(winner.To) {
		return nil, nil
	}
	d.refreshRatios(ctx, winner.To, prices)
	target := winner.To
	return &target, nil
}
