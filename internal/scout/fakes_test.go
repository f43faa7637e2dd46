package scout

import (
	"context"
	"sync"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/store/memory"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeMarket 价格/余额/最小名义价值的内存桩
type fakeMarket struct {
	mu          sync.Mutex
	prices      map[string]decimal.Decimal // symbol -> price vs bridge
	total       map[string]decimal.Decimal
	free        map[string]decimal.Decimal
	minNotional map[string]decimal.Decimal
	quoteErr    error
	minErr      error
	quotes      int
	balances    int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		prices:      map[string]decimal.Decimal{},
		total:       map[string]decimal.Decimal{},
		free:        map[string]decimal.Decimal{},
		minNotional: map[string]decimal.Decimal{},
	}
}

func (m *fakeMarket) setHolding(symbol, qty string) {
	m.total[symbol] = dec(qty)
	m.free[symbol] = dec(qty)
}

func (m *fakeMarket) Quote(_ context.Context, base, _ domain.Asset) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes++
	if m.quoteErr != nil {
		return decimal.Zero, false, m.quoteErr
	}
	p, ok := m.prices[base.Symbol]
	return p, ok, nil
}

func (m *fakeMarket) FreeBalance(_ context.Context, a domain.Asset) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances++
	return m.free[a.Symbol], nil
}

func (m *fakeMarket) TotalBalance(_ context.Context, a domain.Asset) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances++
	return m.total[a.Symbol], nil
}

func (m *fakeMarket) MinNotional(_ context.Context, base, _ domain.Asset) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.minErr != nil {
		return decimal.Zero, m.minErr
	}
	if v, ok := m.minNotional[base.Symbol]; ok {
		return v, nil
	}
	return dec("10"), nil
}

type conversion struct {
	From, To string
}

// fakeExecutor 记录换仓调用；fail 返回给定错误（按调用顺序，nil 表示成功）
type fakeExecutor struct {
	calls []conversion
	fail  []error
}

func (e *fakeExecutor) Convert(_ context.Context, from, to domain.Asset, _ domain.Amount) (domain.Fill, error) {
	e.calls = append(e.calls, conversion{From: from.Symbol, To: to.Symbol})
	if n := len(e.calls) - 1; n < len(e.fail) && e.fail[n] != nil {
		return domain.Fill{}, e.fail[n]
	}
	return domain.NewFill(from, to, dec("1"), dec("1"), time.Unix(0, 0)), nil
}

type fakeHistory struct {
	trades    []domain.Fill
	decisions []domain.Decision
}

func (h *fakeHistory) RecordTrade(_ context.Context, f domain.Fill) error {
	h.trades = append(h.trades, f)
	return nil
}

func (h *fakeHistory) RecordScout(_ context.Context, d []domain.Decision) error {
	h.decisions = append(h.decisions, d...)
	return nil
}

func (h *fakeHistory) RecordValue(context.Context, domain.ValuePoint) error { return nil }
func (h *fakeHistory) RecentTrades(context.Context, int) ([]domain.Fill, error) {
	return h.trades, nil
}
func (h *fakeHistory) PruneScoutHistory(context.Context, time.Time) (int64, error) { return 0, nil }
func (h *fakeHistory) PruneValueHistory(context.Context, time.Time) (int64, error) { return 0, nil }

type fixture struct {
	deps    *Deps
	market  *fakeMarket
	exec    *fakeExecutor
	store   *memory.Store
	history *fakeHistory
}

func newFixture(mode domain.RatioMode, coins ...string) *fixture {
	market := newFakeMarket()
	exec := &fakeExecutor{}
	st := memory.New()
	hist := &fakeHistory{}
	deps := &Deps{
		Bridge: domain.NewBridge("USDT"),
		Coins:  domain.NewAssetSet(coins...),
		Thresholds: domain.ScoutThresholds{
			Multiplier:    dec("5"),
			Margin:        dec("0.8"),
			MinValueFloor: dec("1"),
			Mode:          mode,
		},
		Prices:      market,
		Balances:    market,
		MinNotional: market,
		Executor:    exec,
		State:       st,
		Ratios:      st,
		History:     hist,
		Now:         func() time.Time { return time.Unix(1700000000, 0) },
	}
	return &fixture{deps: deps, market: market, exec: exec, store: st, history: hist}
}

func (f *fixture) hold(symbol string) {
	_ = f.store.SetCurrentCoin(context.Background(), domain.NewAsset(symbol))
}

func (f *fixture) ratio(from, to, r string) {
	_ = f.store.SetRatio(context.Background(), domain.NewAsset(from), domain.NewAsset(to), dec(r))
}

func (f *fixture) current() string {
	a, ok, _ := f.store.CurrentCoin(context.Background())
	if !ok {
		return ""
	}
	return a.Symbol
}
