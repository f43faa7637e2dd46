package scout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScout(t *testing.T, f *fixture) *RatioScout {
	t.Helper()
	s, err := NewRatioScout(f.deps)
	require.NoError(t, err)
	return s
}

// X=10, Y=4, reference(X,Y)=2, 阈值 4.0：交叉比率 2.5 不跳
func TestScoutScenarioANoJump(t *testing.T) {
	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("4")
	f.ratio("X", "Y", "2.0")

	out, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, out.Kind)
	assert.Empty(t, f.exec.calls)
	assert.Equal(t, "X", f.current())
	require.Len(t, out.Decisions, 1)
	assert.True(t, out.Decisions[0].Current.Equal(dec("2.5")))
	assert.False(t, out.Decisions[0].Cleared)
}

// Y=1.9：交叉比率 5.26 > 4.0，跳到 Y 并刷新参考比率
func TestScoutScenarioBJump(t *testing.T) {
	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("1.9")
	f.ratio("X", "Y", "2.0")

	out, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeJumped, out.Kind)
	assert.True(t, out.HoldingMoved)
	assert.Equal(t, []conversion{{"X", "Y"}}, f.exec.calls)
	assert.Equal(t, "Y", f.current())

	ref, ok, err := f.store.Ratio(context.Background(), domain.NewAsset("X"), domain.NewAsset("Y"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ref.Equal(dec("10").Div(dec("1.9"))), "reference=%s", ref)
	assert.Len(t, f.history.trades, 1)
}

func TestScoutRelativeThresholdIsStrict(t *testing.T) {
	cases := []struct {
		priceY string
		jump   bool
	}{
		{"2.5", false}, // 10/2.5 = 4 == 阈值
		{"2.4", true},  // 4.1666 > 4
		{"2.6", false}, // 3.84 < 4
	}
	for _, tc := range cases {
		t.Run(tc.priceY, func(t *testing.T) {
			f := newFixture(domain.RatioModeRelative, "X", "Y")
			f.hold("X")
			f.market.setHolding("X", "1")
			f.market.prices["X"] = dec("10")
			f.market.prices["Y"] = dec(tc.priceY)
			f.ratio("X", "Y", "1")

			out, err := newScout(t, f).Scout(context.Background())
			if err != nil {
				t.Fatalf("scout: %v", err)
			}
			if jumped := out.Kind == domain.OutcomeJumped; jumped != tc.jump {
				t.Fatalf("jumped=%v want %v (%+v)", jumped, tc.jump, out.Decisions)
			}
			want := "X"
			if tc.jump {
				want = "Y"
			}
			if got := f.current(); got != want {
				t.Fatalf("current=%s want %s", got, want)
			}
		})
	}
}

func TestScoutRelativeRecordsMissingReference(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("0.1")

	out, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, out.Kind)

	ref, ok, _ := f.store.Ratio(context.Background(), domain.NewAsset("X"), domain.NewAsset("Y"))
	require.True(t, ok)
	assert.True(t, ref.Equal(dec("100")))
}

func TestScoutTieBreakFirstSeen(t *testing.T) {
	for i := 0; i < 5; i++ {
		f := newFixture(domain.RatioModeRelative, "X", "Z", "Y")
		f.hold("X")
		f.market.setHolding("X", "1")
		f.market.prices["X"] = dec("10")
		f.market.prices["Y"] = dec("2")
		f.market.prices["Z"] = dec("2")
		f.ratio("X", "Y", "1")
		f.ratio("X", "Z", "1")

		out, err := newScout(t, f).Scout(context.Background())
		require.NoError(t, err)
		require.Equal(t, domain.OutcomeJumped, out.Kind)
		require.Equal(t, "Z", f.current(), "run %d", i)
	}
}

func TestScoutPicksHighestImprovement(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y", "Z")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("2")
	f.market.prices["Z"] = dec("1")
	f.ratio("X", "Y", "1")
	f.ratio("X", "Z", "1")

	_, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Z", f.current())
}

func TestScoutDustBoundary(t *testing.T) {
	cases := []struct {
		balance string
		bridged bool
	}{
		{"0.079", true},  // 7.9 = 0.79 x 10
		{"0.081", false}, // 8.1 = 0.81 x 10
	}
	for _, tc := range cases {
		t.Run(tc.balance, func(t *testing.T) {
			f := newFixture(domain.RatioModeRelative, "X", "Y")
			f.hold("X")
			f.market.setHolding("X", tc.balance)
			f.market.prices["X"] = dec("100")
			f.market.prices["Y"] = dec("4")
			f.ratio("X", "Y", "1")

			out, err := newScout(t, f).Scout(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.bridged, out.BridgeScout)
			if tc.bridged {
				require.NotEmpty(t, f.exec.calls)
				assert.Equal(t, conversion{"X", "USDT"}, f.exec.calls[0])
				for _, d := range out.Decisions {
					assert.True(t, d.From.IsBridge, "normal candidates evaluated during bridge scout")
				}
			} else {
				// 100/4 = 25 > 4：正常侦察直接跳到 Y
				assert.Equal(t, []conversion{{"X", "Y"}}, f.exec.calls)
			}
		})
	}
}

func TestScoutSkipsWhenPriceUnavailable(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["Y"] = dec("4")

	out, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, out.Kind)
	assert.Empty(t, f.exec.calls)
}

func TestScoutSkipsUnavailableCandidate(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y", "Z")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Z"] = dec("2")
	f.ratio("X", "Z", "1")

	out, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Decisions, 1)
	assert.Equal(t, "Z", out.Decisions[0].To.Symbol)
	assert.Equal(t, "Z", f.current())
}

func TestScoutTradeFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("1")
	f.ratio("X", "Y", "1")
	f.exec.fail = []error{fmt.Errorf("insufficient balance: %w", domain.ErrTradeFailed)}
	before := f.store.Writes()

	out, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRetry, out.Kind)
	assert.False(t, out.HoldingMoved)
	assert.Equal(t, "X", f.current())
	assert.Equal(t, before, f.store.Writes())
}

func TestScoutPartialConversionHoldsBridge(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("1")
	f.ratio("X", "Y", "1")
	f.exec.fail = []error{&domain.PartialConversionError{
		From:    domain.NewAsset("X"),
		Reached: domain.NewBridge("USDT"),
		Target:  domain.NewAsset("Y"),
		Err:     domain.ErrTradeFailed,
	}}

	out, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRetry, out.Kind)
	assert.True(t, out.HoldingMoved)
	assert.Equal(t, "USDT", f.current())
}

func TestScoutUnresolvedOrderIsFatal(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("1")
	f.ratio("X", "Y", "1")
	f.exec.fail = []error{fmt.Errorf("order 42 timeout: %w", domain.ErrOrderUnresolved)}

	_, err := newScout(t, f).Scout(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOrderUnresolved))
	assert.Equal(t, "X", f.current())
}

func TestScoutFromBridge(t *testing.T) {
	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.hold("USDT")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("0.2") // 1/0.2 = 5 > 4

	out, err := newScout(t, f).Scout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeJumped, out.Kind)
	assert.Equal(t, []conversion{{"USDT", "Y"}}, f.exec.calls)
	assert.Equal(t, "Y", f.current())
	assert.Len(t, out.Decisions, 2)
}

func TestScoutRequiresInitializedState(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	_, err := newScout(t, f).Scout(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}
