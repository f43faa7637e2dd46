package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/ports"
	"github.com/betbot/coinjump/pkg/cache"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const miniTickerPath = "/ws/!miniTicker@arr"

// TickerStream 订阅全市场 miniTicker，把最新价写入 PriceCache
type TickerStream struct {
	wsURL    string
	proxyURL string
	prices   *cache.PriceCache

	ctx    context.Context
	cancel context.CancelFunc

	connMu sync.Mutex
	conn   *websocket.Conn
	wg     sync.WaitGroup
}

// NewTickerStream tld 为空时默认 com；testnet 使用 testnet.binance.vision
func NewTickerStream(cfg Config, proxyURL string, prices *cache.PriceCache) *TickerStream {
	host := "wss://stream.binance." + strings.TrimSpace(cfg.TLD) + ":9443"
	if strings.TrimSpace(cfg.TLD) == "" {
		host = "wss://stream.binance.com:9443"
	}
	if cfg.Testnet {
		host = "wss://testnet.binance.vision"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TickerStream{
		wsURL:    host + miniTickerPath,
		proxyURL: strings.TrimSpace(proxyURL),
		prices:   prices,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *TickerStream) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

func (s *TickerStream) Stop() {
	s.cancel()
	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
	s.wg.Wait()
}

func (s *TickerStream) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, err := s.dial()
		if err != nil {
			log.Warnf("连接 Binance ticker WS 失败: %v", err)
			select {
			case <-time.After(2 * time.Second):
				continue
			case <-s.ctx.Done():
				return
			}
		}

		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()
		log.Infof("Binance miniTicker 已连接: %s", s.wsURL)

		if err := s.readLoop(conn); err != nil && s.ctx.Err() == nil {
			log.Warnf("Binance ticker WS readLoop 退出: %v", err)
		}

		s.connMu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		_ = conn.Close()
		s.connMu.Unlock()

		select {
		case <-time.After(time.Second):
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *TickerStream) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	if s.proxyURL != "" {
		if p, err := url.Parse(s.proxyURL); err == nil {
			dialer.Proxy = http.ProxyURL(p)
		}
	}
	conn, _, err := dialer.DialContext(s.ctx, s.wsURL, nil)
	return conn, err
}

func (s *TickerStream) readLoop(conn *websocket.Conn) error {
	for {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for symbol, price := range parseMiniTickers(msg) {
			s.prices.Set(symbol, price)
		}
	}
}

// parseMiniTickers 解析 !miniTicker@arr 推送：[{"e":"24hrMiniTicker","s":"BNBUSDT","c":"512.3",...}]
func parseMiniTickers(msg []byte) map[string]decimal.Decimal {
	var events []struct {
		EventType string `json:"e"`
		Symbol    string `json:"s"`
		Close     string `json:"c"`
	}
	if err := json.Unmarshal(msg, &events); err != nil {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(events))
	for _, ev := range events {
		if ev.EventType != "24hrMiniTicker" || ev.Symbol == "" {
			continue
		}
		p, err := decimal.NewFromString(ev.Close)
		if err != nil || !p.IsPositive() {
			continue
		}
		out[strings.ToUpper(ev.Symbol)] = p
	}
	return out
}

// StreamPriceOracle 优先读推送缓存，缺失时回退到 REST
type StreamPriceOracle struct {
	prices   *cache.PriceCache
	fallback ports.PriceOracle
}

func NewStreamPriceOracle(prices *cache.PriceCache, fallback ports.PriceOracle) *StreamPriceOracle {
	return &StreamPriceOracle{prices: prices, fallback: fallback}
}

func (o *StreamPriceOracle) Quote(ctx context.Context, base, quote domain.Asset) (decimal.Decimal, bool, error) {
	if base.Equal(quote) {
		return decimal.NewFromInt(1), true, nil
	}
	if p, ok := o.prices.Get(base.PairSymbol(quote)); ok {
		return p, true, nil
	}
	return o.fallback.Quote(ctx, base, quote)
}
