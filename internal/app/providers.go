package app

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/coinjump/internal/dashboard"
	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/exchange/binance"
	"github.com/betbot/coinjump/internal/exchange/paper"
	"github.com/betbot/coinjump/internal/notify"
	"github.com/betbot/coinjump/internal/ports"
	"github.com/betbot/coinjump/internal/scout"
	"github.com/betbot/coinjump/internal/services"
	"github.com/betbot/coinjump/internal/store"
	"github.com/betbot/coinjump/pkg/cache"
	"github.com/betbot/coinjump/pkg/config"
	"github.com/betbot/coinjump/pkg/shutdown"
	"github.com/google/wire"
	"github.com/shopspring/decimal"
)

// ProviderSet 应用依赖图
var ProviderSet = wire.NewSet(
	provideShutdown,
	provideBridge,
	provideCoins,
	provideThresholds,
	provideStore,
	provideExchange,
	provideMarket,
	provideNotifier,
	provideDeps,
	provideInitializer,
	provideEngine,
	provideBoard,
	provideJobs,
	newApp,
)

// Market 行情/余额/下单能力组合（dry run 时余额与下单由纸交易提供）
type Market struct {
	Prices      ports.PriceOracle
	Balances    ports.BalanceOracle
	MinNotional ports.MinNotionalOracle
	Executor    ports.TradeExecutor
	Stream      *binance.TickerStream
}

func provideShutdown() *shutdown.Manager {
	return shutdown.NewManager()
}

func provideBridge(cfg *config.Config) domain.Asset {
	return domain.NewBridge(cfg.Bridge)
}

func provideCoins(cfg *config.Config) (*domain.AssetSet, error) {
	coins := domain.NewAssetSet(cfg.SupportedCoins...)
	if coins.Len() == 0 {
		return nil, fmt.Errorf("no supported coins")
	}
	if coins.Contains(cfg.Bridge) {
		return nil, fmt.Errorf("bridge %s is listed as a supported coin", domain.NormalizeSymbol(cfg.Bridge))
	}
	log.Infof("supported coins: %v", coins.Symbols())
	return coins, nil
}

func provideThresholds(cfg *config.Config) domain.ScoutThresholds {
	mode := domain.RatioModeRelative
	if cfg.RatioMode == config.RatioModeAbsolute {
		mode = domain.RatioModeAbsolute
	}
	return domain.ScoutThresholds{
		Multiplier:    decimal.NewFromFloat(cfg.ScoutMultiplier),
		Margin:        decimal.NewFromFloat(cfg.ScoutMargin),
		MinValueFloor: decimal.NewFromFloat(cfg.MinValueFloor),
		Mode:          mode,
	}
}

func provideStore(cfg *config.Config, sm *shutdown.Manager) (*store.Opened, error) {
	opened, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	sm.OnShutdown("store", func(context.Context) error { return opened.Close() })
	return opened, nil
}

func exchangeConfig(cfg *config.Config) binance.Config {
	return binance.Config{
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.APISecret,
		TLD:               cfg.Exchange.TLD,
		Testnet:           cfg.Exchange.Testnet,
		SellTimeout:       cfg.Exchange.SellTimeout,
		BuyTimeout:        cfg.Exchange.BuyTimeout,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		Burst:             cfg.Exchange.Burst,
	}
}

func provideExchange(cfg *config.Config, bridge domain.Asset, sm *shutdown.Manager) *binance.Exchange {
	ex := binance.NewExchange(exchangeConfig(cfg), bridge)
	sm.OnShutdown("exchange", func(context.Context) error {
		ex.Close()
		return nil
	})
	return ex
}

func provideMarket(cfg *config.Config, bridge domain.Asset, ex *binance.Exchange, sm *shutdown.Manager) (*Market, error) {
	m := &Market{Prices: ex, Balances: ex, MinNotional: ex, Executor: ex}

	if cfg.Exchange.UseStream {
		prices := cache.NewPriceCache(30 * time.Second)
		m.Stream = binance.NewTickerStream(exchangeConfig(cfg), "", prices)
		m.Prices = binance.NewStreamPriceOracle(prices, ex)
		sm.OnShutdown("price_stream", func(context.Context) error {
			m.Stream.Stop()
			prices.Close()
			return nil
		})
	}

	if cfg.DryRun {
		seed, err := paper.ParseBalances(cfg.Paper.Balances)
		if err != nil {
			return nil, err
		}
		pe := paper.New(bridge, m.Prices, seed, paper.DefaultFeeRate)
		m.Balances = pe
		m.Executor = pe
		log.Warnf("dry run: 纸交易模式，初始余额 %d 项", len(seed))
	}
	return m, nil
}

func provideNotifier(cfg *config.Config) ports.Notifier {
	if cfg.Notify.WebhookURL == "" {
		return notify.LogNotifier{}
	}
	return notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
}

func provideDeps(bridge domain.Asset, coins *domain.AssetSet, th domain.ScoutThresholds,
	m *Market, st *store.Opened, n ports.Notifier) *scout.Deps {
	return &scout.Deps{
		Bridge:      bridge,
		Coins:       coins,
		Thresholds:  th,
		Prices:      m.Prices,
		Balances:    m.Balances,
		MinNotional: m.MinNotional,
		Executor:    m.Executor,
		State:       st.Backend,
		Ratios:      st.Backend,
		History:     st.History,
		Notifier:    n,
	}
}

func provideInitializer(cfg *config.Config, deps *scout.Deps) (*scout.Initializer, error) {
	return scout.NewInitializer(deps, cfg.CurrentCoin, cfg.InitCooldown)
}

func provideEngine(deps *scout.Deps, initializer *scout.Initializer) (*scout.Engine, error) {
	return scout.NewEngine(deps, initializer)
}

// provideBoard 状态页关闭时返回 nil
func provideBoard(cfg *config.Config, bridge domain.Asset, engine *scout.Engine, m *Market, st *store.Opened) *dashboard.Board {
	if !cfg.Dashboard.Enabled {
		return nil
	}
	stale := 3 * cfg.ScoutSleepTime
	if stale < time.Minute {
		stale = time.Minute
	}
	return dashboard.NewBoard(bridge, engine, m.Prices, m.Balances, st.History, stale)
}

func provideJobs(cfg *config.Config, bridge domain.Asset, engine *scout.Engine, m *Market,
	st *store.Opened, board *dashboard.Board) services.Jobs {
	jobs := services.Jobs{
		Engine:         engine,
		ScoutEvery:     cfg.ScoutSleepTime,
		Snapshot:       engine,
		Bridge:         bridge,
		Prices:         m.Prices,
		Balances:       m.Balances,
		History:        st.History,
		ScoutRetention: cfg.ScoutHistoryRetention,
	}
	if board != nil {
		jobs.Board = board
	}
	return jobs
}
