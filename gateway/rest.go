package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"market-maker-go/metrics"
	"market-maker-go/order"
)

// ErrMalformed 交易所拒绝了格式错误的请求（参数不合法），重试没有意义。
var ErrMalformed = errors.New("malformed exchange request")

// DefaultUnknownOrderCodes 交易所表示"订单不存在"的业务错误码。
var DefaultUnknownOrderCodes = []int{2080, 3080}

const (
	pathPlace  = "/api/v2/order/new"
	pathCancel = "/api/v2/order/cancel"
	pathOrders = "/api/v2/orders"
	pathStatus = "/api/v2/order/status"

	pageLimit = 100
	maxPages  = 50
)

// Config REST 网关配置。
type Config struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	Timeout           time.Duration
	RateLimit         float64 // 每秒请求数，0 表示不限速
	Burst             int
	UnknownOrderCodes []int
}

// RESTGateway 通过签名的 HTTP 接口访问交易所，实现 order.Gateway 与 order.OrderStatusGateway。
// 网关本身不重试，重试由调用方的清理轮次决定。
type RESTGateway struct {
	client       *resty.Client
	apiKey       string
	secret       string
	limiter      RateLimiter
	unknownCodes map[int]struct{}
	logger       *zap.Logger
}

var (
	_ order.Gateway            = (*RESTGateway)(nil)
	_ order.OrderStatusGateway = (*RESTGateway)(nil)
)

func NewRESTGateway(cfg Config, logger *zap.Logger) (*RESTGateway, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gateway base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	var limiter RateLimiter = noLimit{}
	if cfg.RateLimit > 0 {
		limiter = NewTokenBucketLimiter(cfg.RateLimit, cfg.Burst)
	}
	codes := cfg.UnknownOrderCodes
	if len(codes) == 0 {
		codes = DefaultUnknownOrderCodes
	}
	unknown := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		unknown[c] = struct{}{}
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	return &RESTGateway{
		client:       client,
		apiKey:       cfg.APIKey,
		secret:       cfg.APISecret,
		limiter:      limiter,
		unknownCodes: unknown,
		logger:       logger,
	}, nil
}

// SetLimiter 替换限速器（测试或多个网关共享同一个限额时使用）。
func (g *RESTGateway) SetLimiter(l RateLimiter) {
	if l == nil {
		l = noLimit{}
	}
	g.limiter = l
}

type envelope struct {
	Success   bool            `json:"success"`
	ErrorCode int             `json:"errorCode"`
	Message   string          `json:"message"`
	Result    json.RawMessage `json:"result"`
}

// callResult 一次调用的分类结果。
type callResult int

const (
	resultOK callResult = iota
	resultNotFound
	resultTransient
	resultMalformed
	resultRejected
)

type call struct {
	status int
	env    envelope
	err    error
	result callResult
}

func (c call) describe() string {
	if c.err != nil {
		return c.err.Error()
	}
	if c.env.Message != "" {
		return fmt.Sprintf("status %d code %d: %s", c.status, c.env.ErrorCode, c.env.Message)
	}
	return fmt.Sprintf("status %d code %d", c.status, c.env.ErrorCode)
}

// post 签名并发送一个私有接口请求。
func (g *RESTGateway) post(ctx context.Context, action, path string, params map[string]any) call {
	if err := g.limiter.Wait(ctx); err != nil {
		return call{err: err, result: resultTransient}
	}
	body := map[string]any{"request": path, "nonce": timeNowMillis()}
	for k, v := range params {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return call{err: err, result: resultMalformed}
	}
	payload, signature := SignPayload(raw, g.secret)

	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-TXC-APIKEY", g.apiKey).
		SetHeader("X-TXC-PAYLOAD", payload).
		SetHeader("X-TXC-SIGNATURE", signature).
		SetBody(raw).
		Post(path)

	c := call{err: err}
	if err == nil {
		c.status = resp.StatusCode()
		if jerr := json.Unmarshal(resp.Body(), &c.env); jerr != nil && resp.IsSuccess() {
			c.err = fmt.Errorf("decode %s response: %w", action, jerr)
		}
	}
	c.result = g.classify(c)

	var observed error
	if c.result != resultOK && c.result != resultNotFound {
		observed = errors.New(c.describe())
	}
	metrics.ObserveGatewayCall(action, time.Since(start).Seconds(), observed)
	return c
}

func (g *RESTGateway) classify(c call) callResult {
	switch {
	case c.err != nil:
		return resultTransient
	case c.status == http.StatusTooManyRequests || c.status >= 500:
		return resultTransient
	case c.status == http.StatusNotFound:
		return resultNotFound
	case !c.env.Success && g.isUnknownOrder(c.env.ErrorCode):
		return resultNotFound
	case c.status == http.StatusBadRequest:
		return resultMalformed
	case c.status >= 200 && c.status < 300 && c.env.Success:
		return resultOK
	case c.status >= 200 && c.status < 300:
		// 2xx 但 success=false 且错误码未知，按无确定答复处理
		return resultTransient
	default:
		return resultRejected
	}
}

func (g *RESTGateway) isUnknownOrder(code int) bool {
	_, ok := g.unknownCodes[code]
	return ok
}

// Cancel 撤单。订单不存在返回 CancelNotFound；超时、限流、5xx 返回 CancelTransient 且无错误。
func (g *RESTGateway) Cancel(ctx context.Context, orderID string, side order.Side, pair string) (order.CancelOutcome, error) {
	c := g.post(ctx, "cancel", pathCancel, map[string]any{
		"market":  marketName(pair),
		"orderId": orderID,
	})
	switch c.result {
	case resultOK:
		return order.Cancelled, nil
	case resultNotFound:
		return order.CancelNotFound, nil
	case resultTransient:
		g.logger.Warn("cancel request got no definitive answer",
			zap.String("order_id", orderID),
			zap.String("side", string(side)),
			zap.String("pair", pair),
			zap.String("detail", c.describe()))
		return order.CancelTransient, nil
	case resultMalformed:
		return order.CancelTransient, fmt.Errorf("%w: cancel %s: %s", ErrMalformed, orderID, c.describe())
	default:
		return order.CancelTransient, fmt.Errorf("cancel %s rejected: %s", orderID, c.describe())
	}
}

type openOrderDTO struct {
	OrderID flexID          `json:"orderId"`
	Market  string          `json:"market"`
	Side    string          `json:"side"`
	Price   decimal.Decimal `json:"price"`
	Amount  decimal.Decimal `json:"amount"`
	Left    decimal.Decimal `json:"left"`
	Status  string          `json:"status"`
}

// ListOpenOrders 分页拉取活跃订单。任一页失败则整体失败，避免基于不完整列表撤单。
func (g *RESTGateway) ListOpenOrders(ctx context.Context, pair string, side order.Side) ([]order.OpenOrder, error) {
	pair = strings.ToUpper(pair)
	var res []order.OpenOrder
	for page := 0; page < maxPages; page++ {
		c := g.post(ctx, "list_open", pathOrders, map[string]any{
			"market": marketName(pair),
			"offset": page * pageLimit,
			"limit":  pageLimit,
		})
		if c.result != resultOK {
			return nil, fmt.Errorf("list open orders on %s: %s", pair, c.describe())
		}
		var batch []openOrderDTO
		if len(c.env.Result) > 0 {
			if err := json.Unmarshal(c.env.Result, &batch); err != nil {
				return nil, fmt.Errorf("decode open orders on %s: %w", pair, err)
			}
		}
		for _, o := range batch {
			s, err := order.ParseSide(o.Side)
			if err != nil || s == "" {
				g.logger.Warn("skip open order with unknown side",
					zap.String("order_id", string(o.OrderID)),
					zap.String("side", o.Side))
				continue
			}
			if side != "" && s != side {
				continue
			}
			amount := o.Amount
			if o.Left.IsPositive() {
				amount = o.Left
			}
			res = append(res, order.OpenOrder{
				ID:     string(o.OrderID),
				Side:   s,
				Pair:   pair,
				Price:  o.Price,
				Amount: amount,
				Status: o.Status,
			})
		}
		if len(batch) < pageLimit {
			return res, nil
		}
	}
	return nil, fmt.Errorf("list open orders on %s: more than %d pages", pair, maxPages)
}

// Place 下限价或市价单，返回交易所订单号。
func (g *RESTGateway) Place(ctx context.Context, req order.PlaceRequest) (string, error) {
	params := map[string]any{
		"market": marketName(req.Pair),
		"side":   string(req.Side),
		"amount": req.Amount.String(),
		"type":   req.Type,
	}
	if !strings.EqualFold(req.Type, "market") {
		params["price"] = req.Price.String()
	}
	if req.ClientID != "" {
		params["clientOrderId"] = req.ClientID
	}
	c := g.post(ctx, "place", pathPlace, params)
	if c.result == resultMalformed {
		return "", fmt.Errorf("%w: place on %s: %s", ErrMalformed, req.Pair, c.describe())
	}
	if c.result != resultOK {
		return "", fmt.Errorf("place on %s: %s", req.Pair, c.describe())
	}
	var out struct {
		OrderID flexID `json:"orderId"`
	}
	if err := json.Unmarshal(c.env.Result, &out); err != nil {
		return "", fmt.Errorf("decode placed order: %w", err)
	}
	if out.OrderID == "" {
		return "", errors.New("exchange returned empty order id")
	}
	return string(out.OrderID), nil
}

// OrderStatus 查询单个订单状态；订单不存在时返回 RemoteNotFound 而不是错误。
func (g *RESTGateway) OrderStatus(ctx context.Context, orderID, pair string) (order.RemoteStatus, error) {
	c := g.post(ctx, "status", pathStatus, map[string]any{
		"market":  marketName(pair),
		"orderId": orderID,
	})
	switch c.result {
	case resultOK:
	case resultNotFound:
		return order.RemoteStatus{State: order.RemoteNotFound, Filled: decimal.Zero}, nil
	default:
		return order.RemoteStatus{}, fmt.Errorf("order status %s: %s", orderID, c.describe())
	}
	var out struct {
		Status    string          `json:"status"`
		DealStock decimal.Decimal `json:"dealStock"`
	}
	if err := json.Unmarshal(c.env.Result, &out); err != nil {
		return order.RemoteStatus{}, fmt.Errorf("decode order status: %w", err)
	}
	return order.RemoteStatus{State: remoteState(out.Status), Filled: out.DealStock}, nil
}

func remoteState(s string) order.RemoteState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new", "open", "active":
		return order.RemoteOpen
	case "partially_filled", "partial", "part_deal":
		return order.RemotePartial
	case "filled", "done", "closed":
		return order.RemoteFilled
	case "cancelled", "canceled":
		return order.RemoteCancelled
	default:
		return order.RemoteUnknown
	}
}

// marketName ADM/USDT -> ADM_USDT
func marketName(pair string) string {
	return strings.ReplaceAll(strings.ToUpper(pair), "/", "_")
}

// flexID 兼容数字和字符串形式的订单号。
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}
