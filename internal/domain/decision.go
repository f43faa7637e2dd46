package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DustFactor 持仓桥接价值低于 DustFactor × min_notional 时视为“粉尘/卡死”状态
var DustFactor = decimal.NewFromFloat(0.8)

// RatioMode 阈值比较口径
type RatioMode string

const (
	// RatioModeRelative current/reference 与阈值比较
	RatioModeRelative RatioMode = "relative"
	// RatioModeAbsolute current 直接与阈值比较（reference 仅记录）
	RatioModeAbsolute RatioMode = "absolute"
)

// ScoutThresholds 每次运行固定的侦察阈值
type ScoutThresholds struct {
	Multiplier    decimal.Decimal // scout_multiplier (>=0)
	Margin        decimal.Decimal // scout_margin (0-1)
	MinValueFloor decimal.Decimal // 启动时忽略的最小持仓价值（例如 $1）
	Mode          RatioMode
}

// Required 需要超过的阈值 = multiplier × margin
func (t ScoutThresholds) Required() decimal.Decimal {
	return t.Multiplier.Mul(t.Margin)
}

// Evaluate 对单个有序交易对做阈值判定。
// hasRef=false 时 reference 取 current；relative 口径下首次观测的交易对不参与本轮候选。
func (t ScoutThresholds) Evaluate(from, to Asset, current, reference decimal.Decimal, hasRef bool, at time.Time) Decision {
	if !reference.IsPositive() {
		hasRef = false
	}
	if !hasRef {
		reference = current
	}
	relative := t.Mode != RatioModeAbsolute
	improvement := current
	if relative {
		improvement = current.Div(reference)
	}
	required := t.Required()
	cleared := improvement.GreaterThan(required)
	if relative && !hasRef {
		cleared = false
	}
	return Decision{
		From:        from,
		To:          to,
		Current:     current,
		Reference:   reference,
		Improvement: improvement,
		Threshold:   required,
		Cleared:     cleared,
		Time:        at,
	}
}

// Decision 单个候选资产的侦察结论（不持久化到状态，仅用于审计日志/历史）
type Decision struct {
	From        Asset
	To          Asset
	Current     decimal.Decimal // 当前交叉比率 price(From)/price(To)
	Reference   decimal.Decimal // 参考比率
	Improvement decimal.Decimal // 与阈值比较的量
	Threshold   decimal.Decimal
	Cleared     bool
	Time        time.Time
}

func (d Decision) String() string {
	return fmt.Sprintf("%s->%s current=%s reference=%s improvement=%s threshold=%s cleared=%v",
		d.From, d.To,
		d.Current.StringFixed(8), d.Reference.StringFixed(8),
		d.Improvement.StringFixed(6), d.Threshold.StringFixed(6), d.Cleared)
}

// PickWinner 在通过阈值的候选中选择 Improvement 最大者；并列时取先出现者
func PickWinner(decisions []Decision) (Decision, bool) {
	var (
		best  Decision
		found bool
	)
	for _, d := range decisions {
		if !d.Cleared {
			continue
		}
		if !found || d.Improvement.GreaterThan(best.Improvement) {
			best = d
			found = true
		}
	}
	return best, found
}
