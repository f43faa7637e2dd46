package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amount 换仓数量：显式数量，或 AmountAll（全部可用余额）
type Amount struct {
	qty decimal.Decimal
	all bool
}

// AmountAll 使用全部可用余额
var AmountAll = Amount{all: true}

// AmountOf 指定数量
func AmountOf(qty decimal.Decimal) Amount {
	return Amount{qty: qty}
}

func (a Amount) IsAll() bool               { return a.all }
func (a Amount) Quantity() decimal.Decimal { return a.qty }

func (a Amount) String() string {
	if a.all {
		return "ALL"
	}
	return a.qty.String()
}

// Fill 一次已确认的换仓成交（Order 可能未成交，Fill 一定已执行）
type Fill struct {
	ID      string
	From    Asset
	To      Asset
	FromQty decimal.Decimal // 卖出数量
	ToQty   decimal.Decimal // 获得数量
	Price   decimal.Decimal // 成交价：每单位 From 换得的 To
	Time    time.Time
}

// NewFill 创建成交记录并生成唯一 ID
func NewFill(from, to Asset, fromQty, toQty decimal.Decimal, at time.Time) Fill {
	price := decimal.Zero
	if fromQty.IsPositive() {
		price = toQty.Div(fromQty)
	}
	return Fill{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		FromQty: fromQty,
		ToQty:   toQty,
		Price:   price,
		Time:    at,
	}
}

// ValuePoint 当前持仓的桥接计价快照
type ValuePoint struct {
	Asset       Asset
	Balance     decimal.Decimal
	BridgeValue decimal.Decimal
	Time        time.Time
}
