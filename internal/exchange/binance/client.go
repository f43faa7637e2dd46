package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/betbot/coinjump/pkg/ratelimit"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "binance")

const (
	errCodeInvalidSymbol = -1121
	errCodeUnknownStatus = -1007 // 后端超时，执行状态未知
	errCodeNoSuchOrder   = -2013

	endpointOrder = "order"
	endpointREST  = "rest"
)

// Config 现货接入配置
type Config struct {
	APIKey    string
	APISecret string
	TLD       string // com / us
	Testnet   bool

	SellTimeout  time.Duration
	BuyTimeout   time.Duration
	PollInterval time.Duration

	RequestsPerSecond float64
	Burst             int
}

func (c Config) baseURL() string {
	if c.Testnet {
		return "https://testnet.binance.vision"
	}
	tld := strings.TrimSpace(c.TLD)
	if tld == "" {
		tld = "com"
	}
	return "https://api.binance." + tld
}

// symbolRules 交易对下单规则（来自 exchangeInfo filters）
type symbolRules struct {
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// orderState 订单当前状态
type orderState struct {
	ID          int64
	Status      gobinance.OrderStatusType
	ExecutedQty decimal.Decimal // base 成交数量
	QuoteQty    decimal.Decimal // quote 成交金额
}

// spotAPI 适配器依赖的最小接口（便于测试替换）
type spotAPI interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, bool, error)
	Balances(ctx context.Context) (map[string]balance, error)
	Rules(ctx context.Context, symbol string) (symbolRules, bool, error)
	MarketSell(ctx context.Context, symbol, clientID string, qty decimal.Decimal) (orderState, error)
	MarketBuy(ctx context.Context, symbol, clientID string, quoteQty decimal.Decimal) (orderState, error)
	GetOrder(ctx context.Context, symbol string, id int64) (orderState, error)
	// OrderByClientID 按 newClientOrderId 查单；订单不存在时 ok=false
	OrderByClientID(ctx context.Context, symbol, clientID string) (orderState, bool, error)
	CancelOrder(ctx context.Context, symbol string, id int64) error
}

type balance struct {
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// restAPI go-binance 实现，所有调用经过限流
type restAPI struct {
	client  *gobinance.Client
	limiter *ratelimit.Manager
}

func newRestAPI(cfg Config) *restAPI {
	client := gobinance.NewClient(cfg.APIKey, cfg.APISecret)
	client.BaseURL = cfg.baseURL()

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 20
	}
	lm := ratelimit.NewManager(ratelimit.NewTokenBucket(burst, rps))
	// 现货下单限制：10 秒 50 单
	lm.Register(endpointOrder, ratelimit.NewSlidingWindow(50, 10*time.Second))
	return &restAPI{client: client, limiter: lm}
}

// errNotSent 请求未发出（限流等待被取消），订单必然不存在
var errNotSent = errors.New("request not sent")

func (a *restAPI) wait(ctx context.Context, endpoint string) error {
	if err := a.limiter.Wait(ctx, endpoint); err != nil {
		return fmt.Errorf("%w: rate limit wait: %v", errNotSent, err)
	}
	return nil
}

func isInvalidSymbol(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == errCodeInvalidSymbol
	}
	return false
}

// isRejected 交易所给出明确拒绝，订单未被接受
func isRejected(err error) bool {
	if errors.Is(err, errNotSent) {
		return true
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code != errCodeUnknownStatus
	}
	return false
}

func (a *restAPI) Price(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	if err := a.wait(ctx, endpointREST); err != nil {
		return decimal.Zero, false, err
	}
	prices, err := a.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		if isInvalidSymbol(err) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	for _, p := range prices {
		if p.Symbol != symbol {
			continue
		}
		v, err := decimal.NewFromString(p.Price)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("parse price %s=%q: %w", symbol, p.Price, err)
		}
		return v, true, nil
	}
	return decimal.Zero, false, nil
}

func (a *restAPI) Balances(ctx context.Context) (map[string]balance, error) {
	if err := a.wait(ctx, endpointREST); err != nil {
		return nil, err
	}
	acct, err := a.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]balance, len(acct.Balances))
	for _, b := range acct.Balances {
		free, _ := decimal.NewFromString(b.Free)
		locked, _ := decimal.NewFromString(b.Locked)
		out[strings.ToUpper(b.Asset)] = balance{Free: free, Locked: locked}
	}
	return out, nil
}

func (a *restAPI) Rules(ctx context.Context, symbol string) (symbolRules, bool, error) {
	if err := a.wait(ctx, endpointREST); err != nil {
		return symbolRules{}, false, err
	}
	info, err := a.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		if isInvalidSymbol(err) {
			return symbolRules{}, false, nil
		}
		return symbolRules{}, false, err
	}
	for _, s := range info.Symbols {
		if s.Symbol == symbol {
			return parseFilters(s.Filters), true, nil
		}
	}
	return symbolRules{}, false, nil
}

func (a *restAPI) MarketSell(ctx context.Context, symbol, clientID string, qty decimal.Decimal) (orderState, error) {
	if err := a.wait(ctx, endpointOrder); err != nil {
		return orderState{}, err
	}
	res, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		NewClientOrderID(clientID).
		Side(gobinance.SideTypeSell).
		Type(gobinance.OrderTypeMarket).
		Quantity(qty.String()).
		Do(ctx)
	if err != nil {
		return orderState{}, err
	}
	return fromCreateResponse(res), nil
}

func (a *restAPI) MarketBuy(ctx context.Context, symbol, clientID string, quoteQty decimal.Decimal) (orderState, error) {
	if err := a.wait(ctx, endpointOrder); err != nil {
		return orderState{}, err
	}
	res, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		NewClientOrderID(clientID).
		Side(gobinance.SideTypeBuy).
		Type(gobinance.OrderTypeMarket).
		QuoteOrderQty(quoteQty.String()).
		Do(ctx)
	if err != nil {
		return orderState{}, err
	}
	return fromCreateResponse(res), nil
}

func (a *restAPI) GetOrder(ctx context.Context, symbol string, id int64) (orderState, error) {
	if err := a.wait(ctx, endpointREST); err != nil {
		return orderState{}, err
	}
	o, err := a.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err != nil {
		return orderState{}, err
	}
	return fromOrder(o), nil
}

func (a *restAPI) OrderByClientID(ctx context.Context, symbol, clientID string) (orderState, bool, error) {
	if err := a.wait(ctx, endpointREST); err != nil {
		return orderState{}, false, err
	}
	o, err := a.client.NewGetOrderService().Symbol(symbol).OrigClientOrderID(clientID).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == errCodeNoSuchOrder {
			return orderState{}, false, nil
		}
		return orderState{}, false, err
	}
	return fromOrder(o), true, nil
}

func fromOrder(o *gobinance.Order) orderState {
	executed, _ := decimal.NewFromString(o.ExecutedQuantity)
	quote, _ := decimal.NewFromString(o.CummulativeQuoteQuantity)
	return orderState{ID: o.OrderID, Status: o.Status, ExecutedQty: executed, QuoteQty: quote}
}

func (a *restAPI) CancelOrder(ctx context.Context, symbol string, id int64) error {
	if err := a.wait(ctx, endpointOrder); err != nil {
		return err
	}
	_, err := a.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	return err
}

func fromCreateResponse(res *gobinance.CreateOrderResponse) orderState {
	executed, _ := decimal.NewFromString(res.ExecutedQuantity)
	quote, _ := decimal.NewFromString(res.CummulativeQuoteQuantity)
	return orderState{ID: res.OrderID, Status: res.Status, ExecutedQty: executed, QuoteQty: quote}
}

// parseFilters 从 exchangeInfo filters 提取 LOT_SIZE / NOTIONAL / MIN_NOTIONAL
func parseFilters(filters []map[string]interface{}) symbolRules {
	var r symbolRules
	for _, f := range filters {
		switch f["filterType"] {
		case "LOT_SIZE":
			r.StepSize = decimalField(f, "stepSize")
			r.MinQty = decimalField(f, "minQty")
		case "NOTIONAL", "MIN_NOTIONAL":
			if mn := decimalField(f, "minNotional"); mn.GreaterThan(r.MinNotional) {
				r.MinNotional = mn
			}
		}
	}
	return r
}

func decimalField(f map[string]interface{}, key string) decimal.Decimal {
	switch v := f[key].(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	}
	return decimal.Zero
}
