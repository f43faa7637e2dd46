package scout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, f *fixture, start string) *Engine {
	t.Helper()
	e, err := NewEngine(f.deps, newInit(t, f, start))
	require.NoError(t, err)
	return e
}

func TestEngineTickInitializesThenScouts(t *testing.T) {
	f := newFixture(domain.RatioModeAbsolute, "X", "Y")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("1.9")
	f.ratio("X", "Y", "2.0")

	e := newEngine(t, f, "X")
	require.NoError(t, e.Tick(context.Background()))

	snap := e.Snapshot()
	assert.True(t, snap.HasAsset)
	assert.Equal(t, "Y", snap.CurrentAsset.Symbol)
	assert.Equal(t, domain.OutcomeJumped, snap.LastOutcome)
	require.NotNil(t, snap.LastDecision)
	assert.Equal(t, "Y", snap.LastDecision.To.Symbol)
	assert.False(t, snap.LastTickAt.IsZero())
}

func TestEngineSwallowsTransientErrors(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	f.hold("X")
	f.market.quoteErr = errors.New("HTTPSConnectionPool: Read timed out. (read timeout=10)")

	e := newEngine(t, f, "")
	require.NoError(t, e.Tick(context.Background()))
	snap := e.Snapshot()
	assert.Equal(t, domain.OutcomeRetry, snap.LastOutcome)
	assert.NotEmpty(t, snap.LastError)
	assert.Equal(t, "X", f.current())
}

func TestEnginePropagatesFatalErrors(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	f.hold("X")
	boom := errors.New("invalid api key")
	f.market.quoteErr = boom

	e := newEngine(t, f, "")
	err := e.Tick(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "X", f.current())
}

func TestEngineUnsupportedStartCoinIsFatal(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	e := newEngine(t, f, "DOGE")
	err := e.Tick(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnsupportedStartAsset)
}

func TestEngineNoOpTick(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("4")
	f.ratio("X", "Y", "2.5")

	e := newEngine(t, f, "")
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Tick(context.Background()))
	}
	snap := e.Snapshot()
	assert.Equal(t, domain.OutcomeNoOp, snap.LastOutcome)
	assert.Equal(t, "X", snap.CurrentAsset.Symbol)
	assert.Empty(t, f.exec.calls)
}

func TestEngineSnapshotConcurrentReads(t *testing.T) {
	f := newFixture(domain.RatioModeRelative, "X", "Y")
	f.hold("X")
	f.market.setHolding("X", "1")
	f.market.prices["X"] = dec("10")
	f.market.prices["Y"] = dec("4")

	e := newEngine(t, f, "")
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = e.Snapshot()
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, e.Tick(context.Background()))
	}
	close(stop)
	wg.Wait()
}
