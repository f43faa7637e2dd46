package app

import (
	"context"
	"testing"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/exchange/paper"
	"github.com/betbot/coinjump/internal/notify"
	"github.com/betbot/coinjump/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Bridge:                "USDT",
		SupportedCoins:        []string{"BTC", "ETH"},
		ScoutMultiplier:       5,
		ScoutMargin:           0.8,
		ScoutSleepTime:        5 * time.Second,
		ScoutHistoryRetention: time.Hour,
		MinValueFloor:         1,
		InitCooldown:          time.Minute,
		RatioMode:             config.RatioModeRelative,
		DryRun:                true,
		Store:                 config.StoreConfig{Backend: config.StoreMemory},
		Paper:                 config.PaperConfig{Balances: map[string]string{"USDT": "100"}},
	}
}

func TestBuildAppDryRun(t *testing.T) {
	cfg := testConfig()
	a, err := BuildApp(cfg)
	require.NoError(t, err)
	defer a.Shutdown()

	assert.NotNil(t, a.Engine())
	assert.Nil(t, a.board)
	assert.Nil(t, a.market.Stream)
	_, isPaper := a.market.Executor.(*paper.Exchange)
	assert.True(t, isPaper)

	names := []string{}
	for _, j := range a.jobs.Build() {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{"scout"}, names)

	snap := a.Engine().Snapshot()
	assert.False(t, snap.HasAsset)
}

func TestBuildAppWithDashboardAndHistory(t *testing.T) {
	cfg := testConfig()
	cfg.Store = config.StoreConfig{Backend: config.StoreSQLite, Path: t.TempDir() + "/coinjump.db"}
	cfg.Dashboard = config.DashboardConfig{Enabled: true, Listen: "127.0.0.1:0"}
	cfg.Exchange.UseStream = true

	a, err := BuildApp(cfg)
	require.NoError(t, err)
	defer a.Shutdown()

	require.NotNil(t, a.board)
	require.NotNil(t, a.market.Stream)
	assert.Len(t, a.jobs.Build(), 5)
}

func TestBuildAppRejectsBadPaperBalance(t *testing.T) {
	cfg := testConfig()
	cfg.Paper.Balances = map[string]string{"USDT": "lots"}
	_, err := BuildApp(cfg)
	assert.Error(t, err)
}

func TestProvideThresholds(t *testing.T) {
	cfg := testConfig()
	th := provideThresholds(cfg)
	assert.Equal(t, domain.RatioModeRelative, th.Mode)
	assert.Equal(t, "4", th.Required().String())

	cfg.RatioMode = config.RatioModeAbsolute
	assert.Equal(t, domain.RatioModeAbsolute, provideThresholds(cfg).Mode)
}

func TestProvideNotifier(t *testing.T) {
	cfg := testConfig()
	_, isLog := provideNotifier(cfg).(notify.LogNotifier)
	assert.True(t, isLog)

	cfg.Notify.WebhookURL = "http://127.0.0.1:1/hook"
	_, isWebhook := provideNotifier(cfg).(*notify.Webhook)
	assert.True(t, isWebhook)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.ScoutSleepTime = time.Hour
	a, err := BuildApp(cfg)
	require.NoError(t, err)

	// 替换 scout 任务，避免访问交易所
	a.jobs.Engine = tickFunc(func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

type tickFunc func(ctx context.Context) error

func (f tickFunc) Tick(ctx context.Context) error { return f(ctx) }

func TestProvideCoinsRejectsBridge(t *testing.T) {
	cfg := testConfig()
	cfg.SupportedCoins = []string{"BTC", "usdt"}
	_, err := provideCoins(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USDT")

	cfg.SupportedCoins = []string{" ", ""}
	_, err = provideCoins(cfg)
	require.Error(t, err)

	cfg.SupportedCoins = []string{"btc", "ETH", "BTC"}
	coins, err := provideCoins(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, coins.Symbols())
}
