package binance

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/betbot/coinjump/internal/domain"
)

const (
	lookupTimeout  = 10 * time.Second
	lookupAttempts = 3
)

func isTerminal(status gobinance.OrderStatusType) bool {
	switch status {
	case gobinance.OrderStatusTypeFilled,
		gobinance.OrderStatusTypeCanceled,
		gobinance.OrderStatusTypeRejected,
		gobinance.OrderStatusTypeExpired:
		return true
	}
	return false
}

// settle 终态订单：有成交即视为完成（剩余部分作为粉尘留在原资产），无成交为干净失败
func settle(symbol string, o orderState) (orderState, error) {
	if o.Status == gobinance.OrderStatusTypeFilled || o.ExecutedQty.IsPositive() {
		return o, nil
	}
	return o, fmt.Errorf("%w: order %s#%d %s without fill", domain.ErrTradeFailed, symbol, o.ID, o.Status)
}

// recoverSubmit 处理下单请求本身的失败。
// 交易所明确拒绝为干净失败；传输错误时请求可能已被受理，按 clientID 查回订单，
// 多次确认不存在才视为未下单，查询失败则返回 ErrOrderUnresolved。
func (e *Exchange) recoverSubmit(ctx context.Context, symbol, clientID string, submitErr error) (orderState, error) {
	if isRejected(submitErr) {
		return orderState{}, fmt.Errorf("%w: %s order %s: %v", domain.ErrTradeFailed, symbol, clientID, submitErr)
	}
	log.WithError(submitErr).Warnf("order %s %s outcome unknown, looking it up", symbol, clientID)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
	defer cancel()
	for attempt := 1; ; attempt++ {
		o, ok, err := e.api.OrderByClientID(ctx, symbol, clientID)
		if err != nil {
			return orderState{}, fmt.Errorf("%w: %s order %s: submit: %v; lookup: %v",
				domain.ErrOrderUnresolved, symbol, clientID, submitErr, err)
		}
		if ok {
			log.Infof("order %s %s found as #%d %s", symbol, clientID, o.ID, o.Status)
			return o, nil
		}
		if attempt >= lookupAttempts {
			return orderState{}, fmt.Errorf("%w: %s order %s not on exchange: %v", domain.ErrTradeFailed, symbol, clientID, submitErr)
		}
		select {
		case <-ctx.Done():
			return orderState{}, fmt.Errorf("%w: %s order %s: %v", domain.ErrOrderUnresolved, symbol, clientID, ctx.Err())
		case <-time.After(e.pollInterval):
		}
	}
}

// waitOrder 轮询订单直到终态；超时后尝试撤单，仍无法确认终态则返回 ErrOrderUnresolved
func (e *Exchange) waitOrder(ctx context.Context, symbol string, placed orderState, timeout time.Duration) (orderState, error) {
	if isTerminal(placed.Status) {
		return settle(symbol, placed)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	last := placed
	for {
		select {
		case <-waitCtx.Done():
			return e.resolveTimedOut(ctx, symbol, last)
		case <-ticker.C:
		}
		o, err := e.api.GetOrder(waitCtx, symbol, placed.ID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			log.WithError(err).Warnf("query order %s#%d", symbol, placed.ID)
			continue
		}
		last = o
		if isTerminal(o.Status) {
			return settle(symbol, o)
		}
	}
}

func (e *Exchange) resolveTimedOut(ctx context.Context, symbol string, last orderState) (orderState, error) {
	// 外层 ctx 可能已取消，撤单与复查使用独立的短超时
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
	defer cancel()

	log.Warnf("order %s#%d not terminal after timeout, cancelling", symbol, last.ID)
	if err := e.api.CancelOrder(ctx, symbol, last.ID); err != nil {
		log.WithError(err).Warnf("cancel order %s#%d", symbol, last.ID)
	}
	o, err := e.api.GetOrder(ctx, symbol, last.ID)
	if err != nil {
		return last, fmt.Errorf("%w: %s#%d: %v", domain.ErrOrderUnresolved, symbol, last.ID, err)
	}
	if !isTerminal(o.Status) {
		return o, fmt.Errorf("%w: %s#%d status %s", domain.ErrOrderUnresolved, symbol, o.ID, o.Status)
	}
	return settle(symbol, o)
}
