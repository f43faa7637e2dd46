package scout

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	// DefaultInitCooldown 资金不足时的重试间隔
	DefaultInitCooldown = 60 * time.Second
)

// fallbackMinNotional 代表交易对最小名义价值查询失败时的兜底值
var fallbackMinNotional = decimal.NewFromInt(10)

// Initializer 首次运行时确定当前持仓
type Initializer struct {
	deps      *Deps
	startCoin string
	cooldown  time.Duration
	rnd       *rand.Rand
	sleep     func(ctx context.Context, d time.Duration) error
}

type InitOption func(*Initializer)

// WithRand 注入随机源（测试用固定种子）
func WithRand(r *rand.Rand) InitOption {
	return func(i *Initializer) { i.rnd = r }
}

// WithSleep 替换冷却等待函数
func WithSleep(fn func(ctx context.Context, d time.Duration) error) InitOption {
	return func(i *Initializer) { i.sleep = fn }
}

func NewInitializer(deps *Deps, startCoin string, cooldown time.Duration, opts ...InitOption) (*Initializer, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cooldown <= 0 {
		cooldown = DefaultInitCooldown
	}
	i := &Initializer{
		deps:      deps,
		startCoin: domain.NormalizeSymbol(startCoin),
		cooldown:  cooldown,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.rnd == nil {
		i.rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return i, nil
}

// Initialize 阻塞直到当前持仓确定。已确定时直接返回。
// 资金不足按冷却间隔无限重试；配置的起始资产不受支持则返回致命错误。
func (i *Initializer) Initialize(ctx context.Context) error {
	for {
		done, err := i.attempt(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := i.sleep(ctx, i.cooldown); err != nil {
			return err
		}
	}
}

func (i *Initializer) attempt(ctx context.Context) (bool, error) {
	d := i.deps
	metrics.InitAttempts.Add(1)

	if _, ok, err := d.State.CurrentCoin(ctx); err != nil {
		return false, fmt.Errorf("load current coin: %w", err)
	} else if ok {
		return true, nil
	}

	// 1. 配置的起始资产
	if i.startCoin != "" {
		coin, ok := d.Coins.Get(i.startCoin)
		if !ok {
			return false, fmt.Errorf("%w: %s", domain.ErrUnsupportedStartAsset, i.startCoin)
		}
		return i.adopt(ctx, coin, "configured")
	}

	// 2. 已持有的最高价值资产
	coin, value, found, err := i.highestHolding(ctx)
	if err != nil {
		return false, err
	}
	if found {
		log.Infof("asset selection: prioritizing %s (%s %s)", coin, value.StringFixed(2), d.Bridge)
		return i.adopt(ctx, coin, "held")
	}

	// 3. 桥接资产余额足够：随机选一个并立即买入
	bridgeBalance, err := d.Balances.FreeBalance(ctx, d.Bridge)
	if err != nil {
		return false, fmt.Errorf("balance %s: %w", d.Bridge, err)
	}
	minNotional := i.representativeMinNotional(ctx)
	if bridgeBalance.GreaterThanOrEqual(minNotional) {
		all := d.Coins.All()
		pick := all[i.rnd.IntN(len(all))]
		log.Infof("found %s %s, purchasing %s to begin trading", bridgeBalance, d.Bridge, pick)

		var out domain.Outcome
		reached, moved, err := d.convert(ctx, d.Bridge, pick, &out)
		if err != nil {
			return false, err
		}
		if !moved || !reached.Equal(pick) {
			log.Warnf("initial purchase of %s failed, retrying in %s", pick, i.cooldown)
			return false, nil
		}
		return i.adopt(ctx, pick, "purchased")
	}

	// 4. 资金不足
	log.Warnf("no funds detected (%s %s, need %s); transfer funds to the spot wallet, retrying in %s",
		bridgeBalance, d.Bridge, minNotional, i.cooldown)
	d.notify(ctx, "insufficient funds", fmt.Sprintf("%s balance %s below %s", d.Bridge, bridgeBalance, minNotional))
	return false, nil
}

func (i *Initializer) adopt(ctx context.Context, coin domain.Asset, how string) (bool, error) {
	if err := i.deps.State.SetCurrentCoin(ctx, coin); err != nil {
		return false, fmt.Errorf("save current coin %s: %w", coin, err)
	}
	log.Infof("initial coin set to %s (%s)", coin, how)
	return true, nil
}

// highestHolding 在持有的支持资产中找桥接计价最高者（低于下限的视为粉尘）
func (i *Initializer) highestHolding(ctx context.Context) (domain.Asset, decimal.Decimal, bool, error) {
	d := i.deps
	var (
		best      domain.Asset
		bestValue decimal.Decimal
		found     bool
	)
	for _, c := range d.Coins.All() {
		balance, err := d.Balances.TotalBalance(ctx, c)
		if err != nil {
			return domain.Asset{}, decimal.Zero, false, fmt.Errorf("balance %s: %w", c, err)
		}
		if !balance.IsPositive() {
			continue
		}
		price, ok, err := d.Prices.Quote(ctx, c, d.Bridge)
		if err != nil {
			return domain.Asset{}, decimal.Zero, false, fmt.Errorf("quote %s: %w", c.PairSymbol(d.Bridge), err)
		}
		if !ok {
			continue
		}
		value := balance.Mul(price)
		if value.LessThan(d.Thresholds.MinValueFloor) {
			continue
		}
		if !found || value.GreaterThan(bestValue) {
			best, bestValue, found = c, value, true
		}
	}
	return best, bestValue, found, nil
}

func (i *Initializer) representativeMinNotional(ctx context.Context) decimal.Decimal {
	d := i.deps
	first, ok := d.Coins.First()
	if !ok {
		return fallbackMinNotional
	}
	mn, err := d.MinNotional.MinNotional(ctx, first, d.Bridge)
	if err != nil || !mn.IsPositive() {
		if err != nil {
			log.Debugf("min notional %s lookup failed, using %s: %v", first.PairSymbol(d.Bridge), fallbackMinNotional, err)
		}
		return fallbackMinNotional
	}
	return mn
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
