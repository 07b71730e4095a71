package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Placer 通过 Gateway 下单并在存储中登记记录。策略层经由它下单，
// 这样每个订单都会出现在本地记录中，清理器才知道它属于谁。
type Placer struct {
	gw       Gateway
	repo     Repository
	exchange string
	account  string
	logger   *zap.Logger

	mu          sync.RWMutex
	constraints map[string]SymbolConstraints
}

func NewPlacer(gw Gateway, repo Repository, exchange, account string, logger *zap.Logger) *Placer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Placer{
		gw:          gw,
		repo:        repo,
		exchange:    exchange,
		account:     account,
		logger:      logger,
		constraints: make(map[string]SymbolConstraints),
	}
}

// SetConstraints 设置各交易对的精度/名义限制。
func (p *Placer) SetConstraints(c map[string]SymbolConstraints) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.constraints = make(map[string]SymbolConstraints, len(c))
	for sym, sc := range c {
		p.constraints[strings.ToUpper(sym)] = sc
	}
}

// Place 校验并下单，成功后写入一条非终态记录。
// 下单成功但记录写入失败时返回 ErrStore；该订单会在下一次未知订单清理时被撤销。
func (p *Placer) Place(ctx context.Context, req PlaceRequest, purpose Purpose) (*Record, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrInvalidRequest, purpose)
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return nil, fmt.Errorf("%w: side %q", ErrInvalidRequest, req.Side)
	}
	req.Pair = strings.ToUpper(req.Pair)
	if req.Type == "" {
		req.Type = "limit"
	}
	if err := p.validateConstraint(req); err != nil {
		return nil, err
	}
	if req.ClientID == "" {
		req.ClientID = newClientID(purpose)
	}

	id, err := p.gw.Place(ctx, req)
	if err != nil {
		p.logger.Warn("place order failed",
			zap.String("pair", req.Pair),
			zap.String("side", string(req.Side)),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return nil, err
	}
	if id == "" {
		return nil, errors.New("gateway returned empty order id")
	}

	now := time.Now().UTC()
	r := &Record{
		ID:          id,
		Exchange:    p.exchange,
		Pair:        req.Pair,
		Account:     p.account,
		Side:        req.Side,
		Type:        req.Type,
		Price:       req.Price,
		BaseAmount:  req.Amount,
		QuoteAmount: req.Price.Mul(req.Amount),
		Purpose:     purpose,
		ClientID:    req.ClientID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.repo.Persist(ctx, r); err != nil {
		p.logger.Error("order placed but not recorded",
			zap.String("order_id", id),
			zap.String("pair", req.Pair),
			zap.Error(err))
		return nil, storeErr(fmt.Sprintf("record order %s", id), err)
	}
	p.logger.Info("order placed",
		zap.String("order_id", id),
		zap.String("pair", req.Pair),
		zap.String("side", string(req.Side)),
		zap.String("purpose", string(purpose)),
		zap.String("price", req.Price.String()),
		zap.String("amount", req.Amount.String()))
	return r, nil
}

func (p *Placer) validateConstraint(req PlaceRequest) error {
	p.mu.RLock()
	c, ok := p.constraints[req.Pair]
	p.mu.RUnlock()
	if !ok {
		return nil
	}
	if strings.EqualFold(req.Type, "market") {
		return nil
	}
	return c.Validate(req.Price, req.Amount)
}

// newClientID 以用途为前缀生成客户端订单号。
func newClientID(purpose Purpose) string {
	return string(purpose) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
