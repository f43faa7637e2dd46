package domain

import "strings"

// Asset 可交易资产（按 Symbol 判等）
type Asset struct {
	Symbol   string // 资产符号，例如 BTC / USDT
	IsBridge bool   // 是否为桥接资产（结算/计价单位）
}

// NewAsset 创建普通资产
func NewAsset(symbol string) Asset {
	return Asset{Symbol: NormalizeSymbol(symbol)}
}

// NewBridge 创建桥接资产
func NewBridge(symbol string) Asset {
	return Asset{Symbol: NormalizeSymbol(symbol), IsBridge: true}
}

// NormalizeSymbol 统一符号格式（去空白 + 大写）
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Equal 按符号判等（忽略 IsBridge 标记）
func (a Asset) Equal(other Asset) bool {
	return a.Symbol == other.Symbol
}

func (a Asset) IsZero() bool   { return a.Symbol == "" }
func (a Asset) String() string { return a.Symbol }

// PairSymbol 交易对符号：BTC + USDT -> BTCUSDT
func (a Asset) PairSymbol(quote Asset) string {
	return a.Symbol + quote.Symbol
}

// AssetSet 有序资产集合，进程生命周期内固定
type AssetSet struct {
	items []Asset
	index map[string]int
}

// NewAssetSet 按给定顺序构建集合（空值与重复项被忽略）
func NewAssetSet(symbols ...string) *AssetSet {
	s := &AssetSet{index: make(map[string]int, len(symbols))}
	for _, raw := range symbols {
		a := NewAsset(raw)
		if a.IsZero() {
			continue
		}
		if _, dup := s.index[a.Symbol]; dup {
			continue
		}
		s.index[a.Symbol] = len(s.items)
		s.items = append(s.items, a)
	}
	return s
}

// All 返回集合副本（保持原始顺序）
func (s *AssetSet) All() []Asset {
	out := make([]Asset, len(s.items))
	copy(out, s.items)
	return out
}

func (s *AssetSet) Len() int { return len(s.items) }

func (s *AssetSet) Contains(symbol string) bool {
	_, ok := s.index[NormalizeSymbol(symbol)]
	return ok
}

func (s *AssetSet) Get(symbol string) (Asset, bool) {
	i, ok := s.index[NormalizeSymbol(symbol)]
	if !ok {
		return Asset{}, false
	}
	return s.items[i], true
}

// First 返回第一个资产（用于代表性交易对的最小名义价值查询）
func (s *AssetSet) First() (Asset, bool) {
	if len(s.items) == 0 {
		return Asset{}, false
	}
	return s.items[0], true
}

// Symbols 返回符号列表
func (s *AssetSet) Symbols() []string {
	out := make([]string, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a.Symbol)
	}
	return out
}
