package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeSnapshot struct{ snap domain.Snapshot }

func (f fakeSnapshot) Snapshot() domain.Snapshot { return f.snap }

type fakeMarket struct {
	price   decimal.Decimal
	balance decimal.Decimal
	err     error
}

func (f *fakeMarket) Quote(context.Context, domain.Asset, domain.Asset) (decimal.Decimal, bool, error) {
	return f.price, true, f.err
}

func (f *fakeMarket) FreeBalance(context.Context, domain.Asset) (decimal.Decimal, error) {
	return f.balance, f.err
}

func (f *fakeMarket) TotalBalance(context.Context, domain.Asset) (decimal.Decimal, error) {
	return f.balance, f.err
}

type fakeHistory struct {
	fills []domain.Fill
}

func (h *fakeHistory) RecordTrade(context.Context, domain.Fill) error          { return nil }
func (h *fakeHistory) RecordScout(context.Context, []domain.Decision) error    { return nil }
func (h *fakeHistory) RecordValue(context.Context, domain.ValuePoint) error    { return nil }
func (h *fakeHistory) PruneScoutHistory(context.Context, time.Time) (int64, error) { return 0, nil }
func (h *fakeHistory) PruneValueHistory(context.Context, time.Time) (int64, error) { return 0, nil }
func (h *fakeHistory) RecentTrades(_ context.Context, limit int) ([]domain.Fill, error) {
	if len(h.fills) > limit {
		return h.fills[:limit], nil
	}
	return h.fills, nil
}

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestBoard(snap domain.Snapshot, m *fakeMarket, h *fakeHistory) *Board {
	var history ports.HistoryRecorder
	if h != nil {
		history = h
	}
	b := NewBoard(domain.NewBridge("USDT"), fakeSnapshot{snap}, m, m, history, time.Minute)
	b.now = func() time.Time { return now }
	return b
}

func TestBoardSync(t *testing.T) {
	fill := domain.NewFill(domain.NewAsset("BTC"), domain.NewAsset("ETH"), d("1"), d("20"), now.Add(-time.Hour))
	snap := domain.Snapshot{
		CurrentAsset: domain.NewAsset("ETH"),
		HasAsset:     true,
		LastTickAt:   now.Add(-10 * time.Second),
		LastOutcome:  domain.OutcomeNoOp,
	}
	b := newTestBoard(snap, &fakeMarket{price: d("1000"), balance: d("2.5")}, &fakeHistory{fills: []domain.Fill{fill}})

	require.NoError(t, b.Sync(context.Background()))
	st := b.Status()
	assert.Equal(t, "ETH", st.CurrentCoin)
	assert.Equal(t, "USDT", st.Bridge)
	assert.Equal(t, "2.5", st.Holding)
	assert.Equal(t, "2500.00", st.Balance)
	assert.True(t, st.IsActive)
	assert.Equal(t, "no_op", st.LastOutcome)
	require.Len(t, st.Trades, 1)
	assert.Equal(t, "BTC", st.Trades[0].From)
	assert.Equal(t, "20", st.Trades[0].ToQty)
}

func TestBoardSyncKeepsLastValueOnError(t *testing.T) {
	snap := domain.Snapshot{CurrentAsset: domain.NewAsset("ETH"), HasAsset: true, LastTickAt: now.Add(-time.Hour)}
	m := &fakeMarket{price: d("1000"), balance: d("1")}
	b := newTestBoard(snap, m, nil)

	require.NoError(t, b.Sync(context.Background()))
	m.err = errors.New("Read timed out")
	assert.Error(t, b.Sync(context.Background()))

	st := b.Status()
	assert.Equal(t, "1000.00", st.Balance)
	assert.False(t, st.IsActive)
	assert.Empty(t, st.Trades)
}

func TestServerRoutes(t *testing.T) {
	snap := domain.Snapshot{CurrentAsset: domain.NewBridge("USDT"), HasAsset: true, LastTickAt: now}
	b := newTestBoard(snap, &fakeMarket{price: d("1"), balance: d("42")}, nil)
	require.NoError(t, b.Sync(context.Background()))
	h := NewServer(b).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "USDT", st.CurrentCoin)
	assert.Equal(t, "42.00", st.Balance)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coinjump")
}
