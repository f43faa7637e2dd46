package scout

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// X 余额 0.001、价格 100：价值 0.1 < 8，回退到 USDT 后从 USDT 重新评估
func TestBridgeScoutScenarioC(t *testing.T) {
	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "0.001")
	f.market.prices["X"] = dec("100")
	f.market.prices["Y"] = dec("0.2")

	out, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	assert.True(t, out.BridgeScout)
	assert.Equal(t, domain.OutcomeJumped, out.Kind)
	assert.Equal(t, []conversion{{"X", "USDT"}, {"USDT", "Y"}}, f.exec.calls)
	assert.Equal(t, "Y", f.current())
	assert.Len(t, f.history.trades, 2)
}

func TestBridgeScoutHoldsBridgeWithoutCandidate(t *testing.T) {
	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.market.setHolding("X", "0.001")
	f.market.prices["X"] = dec("100")
	f.market.prices["Y"] = dec("4")

	b, err := NewBridgeScout(f.deps)
	require.NoError(t, err)
	target, out, err := b.Run(context.Background(), domain.NewAsset("X"))
	require.NoError(t, err)
	assert.Nil(t, target)
	assert.Equal(t, domain.OutcomeBridged, out.Kind)
	assert.Equal(t, "USDT", f.current())
	assert.Equal(t, 1, f.store.Writes())
}

func TestBridgeScoutGuardSkipsWhenBalanceAboveMinNotional(t *testing.T) {
	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "11")

	b, err := NewBridgeScout(f.deps)
	require.NoError(t, err)
	target, out, err := b.Run(context.Background(), domain.NewAsset("X"))
	require.NoError(t, err)
	assert.Nil(t, target)
	assert.Equal(t, domain.OutcomeNoOp, out.Kind)
	assert.Empty(t, f.exec.calls)
	assert.Equal(t, "X", f.current())
}

func TestBridgeScoutConversionFailureKeepsHolding(t *testing.T) {
	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "0.001")
	f.market.prices["X"] = dec("100")
	f.exec.fail = []error{fmt.Errorf("lot size: %w", domain.ErrTradeFailed)}

	b, err := NewBridgeScout(f.deps)
	require.NoError(t, err)
	_, out, err := b.Run(context.Background(), domain.NewAsset("X"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRetry, out.Kind)
	assert.False(t, out.HoldingMoved)
	assert.Equal(t, "X", f.current())
}

func TestBridgeScoutSecondLegFailureHoldsBridge(t *testing.T) {
	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "0.001")
	f.market.prices["X"] = dec("100")
	f.market.prices["Y"] = dec("0.2")
	f.exec.fail = []error{nil, fmt.Errorf("rejected: %w", domain.ErrTradeFailed)}

	b, err := NewBridgeScout(f.deps)
	require.NoError(t, err)
	target, out, err := b.Run(context.Background(), domain.NewAsset("X"))
	require.NoError(t, err)
	assert.Nil(t, target)
	assert.Equal(t, domain.OutcomeRetry, out.Kind)
	assert.Equal(t, "USDT", f.current())
}

func TestBridgeScoutRepeatedDustFailureWarnsOnce(t *testing.T) {
	hook := logtest.NewGlobal()
	t.Cleanup(func() { logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks)) })

	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "0.001")
	f.market.prices["X"] = dec("100")
	below := fmt.Errorf("sell XUSDT notional below 10: %w", domain.ErrTradeFailed)
	f.exec.fail = []error{below, below, below}

	b, err := NewBridgeScout(f.deps)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, out, err := b.Run(context.Background(), domain.NewAsset("X"))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeRetry, out.Kind)
	}

	warns := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "will retry") {
			warns++
		}
	}
	assert.Equal(t, 1, warns)
	assert.Equal(t, "X", f.current())
}

func TestFailureLogResetsOnNewPair(t *testing.T) {
	var l failureLog
	assert.Equal(t, 0, l.observe("X->USDT"))
	assert.Equal(t, 1, l.observe("X->USDT"))
	assert.Equal(t, 0, l.observe("Y->USDT"))
	l.reset()
	assert.Equal(t, 0, l.observe("Y->USDT"))
}
