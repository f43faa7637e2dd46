package binance

import (
	"context"
	"testing"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/pkg/cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMiniTickers(t *testing.T) {
	msg := []byte(`[
		{"e":"24hrMiniTicker","E":1672515782136,"s":"BNBUSDT","c":"0.0025","o":"0.0010"},
		{"e":"24hrMiniTicker","E":1672515782136,"s":"ethusdt","c":"1200.5"},
		{"e":"24hrMiniTicker","s":"BADUSDT","c":"not-a-number"},
		{"e":"24hrMiniTicker","s":"ZEROUSDT","c":"0"},
		{"e":"trade","s":"XRPUSDT","c":"1"}
	]`)
	got := parseMiniTickers(msg)
	require.Len(t, got, 2)
	assert.True(t, got["BNBUSDT"].Equal(d("0.0025")))
	assert.True(t, got["ETHUSDT"].Equal(d("1200.5")))

	assert.Nil(t, parseMiniTickers([]byte(`{"result":null,"id":1}`)))
}

type staticOracle struct {
	calls int
}

func (s *staticOracle) Quote(context.Context, domain.Asset, domain.Asset) (decimal.Decimal, bool, error) {
	s.calls++
	return d("42"), true, nil
}

func TestStreamPriceOracleFallsBack(t *testing.T) {
	prices := cache.NewPriceCache(time.Minute)
	defer prices.Close()
	fallback := &staticOracle{}
	o := NewStreamPriceOracle(prices, fallback)
	ctx := context.Background()

	prices.Set("BTCUSDT", d("20000"))
	p, ok, err := o.Quote(ctx, btc, usdt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Equal(d("20000")))
	assert.Zero(t, fallback.calls)

	p, ok, err = o.Quote(ctx, eth, usdt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Equal(d("42")))
	assert.Equal(t, 1, fallback.calls)
}

func TestNewTickerStreamURL(t *testing.T) {
	prices := cache.NewPriceCache(time.Minute)
	defer prices.Close()
	assert.Equal(t, "wss://stream.binance.com:9443/ws/!miniTicker@arr", NewTickerStream(Config{}, "", prices).wsURL)
	assert.Equal(t, "wss://stream.binance.us:9443/ws/!miniTicker@arr", NewTickerStream(Config{TLD: "us"}, "", prices).wsURL)
	assert.Equal(t, "wss://testnet.binance.vision/ws/!miniTicker@arr", NewTickerStream(Config{Testnet: true}, "", prices).wsURL)
}
