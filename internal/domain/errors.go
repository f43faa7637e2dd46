package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedStartAsset 配置的起始资产不在支持集合内（致命配置错误）
	ErrUnsupportedStartAsset = errors.New("starting asset is not a supported coin")
	// ErrTradeFailed 交易所明确拒绝/未成交，未发生任何资产变动，可在下一个 tick 重试
	ErrTradeFailed = errors.New("trade failed")
	// ErrOrderUnresolved 订单已提交但无法确认终态（致命，需人工介入）
	ErrOrderUnresolved = errors.New("order has no terminal state")
	// ErrNotInitialized 当前持仓尚未确定
	ErrNotInitialized = errors.New("current coin is not initialized")
)

// PartialConversionError 经由桥接资产的两腿换仓只完成了第一腿。
// Reached 是实际持有的资产（通常为桥接资产）。
type PartialConversionError struct {
	From    Asset
	Reached Asset
	Target  Asset
	Fill    Fill
	Err     error
}

func (e *PartialConversionError) Error() string {
	return fmt.Sprintf("conversion %s->%s stopped at %s: %v", e.From, e.Target, e.Reached, e.Err)
}

func (e *PartialConversionError) Unwrap() error {
	return e.Err
}
