package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"market-maker-go/metrics"
)

// ErrNoPair 请求未指定交易对且没有配置默认交易对。
var ErrNoPair = errors.New("no trading pair given and no default pair configured")

// CollectorConfig 订单清理器配置。
type CollectorConfig struct {
	Exchange    string
	Account     string // 空表示主账户
	DefaultPair string
	MaxTries    int
}

// Collector 维护本地订单记录与交易所之间的一致性，负责撤单与对账。
// 一次调用内严格串行撤单，避免触发交易所限流。
type Collector struct {
	repo   Repository
	gw     Gateway
	syncer Syncer
	logger *zap.Logger

	mu  sync.RWMutex
	cfg CollectorConfig
}

// NewCollector 创建清理器；syncer 为空时使用 NopSyncer。
func NewCollector(repo Repository, gw Gateway, syncer Syncer, cfg CollectorConfig, logger *zap.Logger) (*Collector, error) {
	if repo == nil {
		return nil, errors.New("order repository is required")
	}
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if cfg.Exchange == "" {
		return nil, errors.New("exchange is required")
	}
	if syncer == nil {
		syncer = NopSyncer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = DefaultMaxTries
	}
	return &Collector{
		repo:   repo,
		gw:     gw,
		syncer: syncer,
		cfg:    cfg,
		logger: logger.With(zap.String("exchange", cfg.Exchange)),
	}, nil
}

// SetMaxTries 运行时调整强制模式的最大轮数（配置热更新）。
func (c *Collector) SetMaxTries(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.cfg.MaxTries = n
	c.mu.Unlock()
}

// Config returns a copy of the current configuration.
func (c *Collector) Config() CollectorConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *Collector) policy(force bool) RetryPolicy {
	return RetryPolicy{MaxTries: c.Config().MaxTries, Force: force}
}

func (c *Collector) resolvePair(pair string) (string, error) {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if pair != "" {
		return pair, nil
	}
	if def := c.Config().DefaultPair; def != "" {
		return strings.ToUpper(def), nil
	}
	return "", ErrNoPair
}

func (c *Collector) baseFilter(pair string, side Side) Filter {
	cfg := c.Config()
	return Filter{
		Exchange: cfg.Exchange,
		Account:  cfg.Account,
		Pair:     pair,
		Purposes: AllPurposes(),
		Side:     side,
	}
}

func validateSide(side Side) error {
	if side != "" && side != SideBuy && side != SideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidRequest, side)
	}
	return nil
}

// storeErr 包装存储错误，保证可以用 errors.Is(err, ErrStore) 判断。
func storeErr(op string, err error) error {
	if errors.Is(err, ErrStore) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStore, err)
}

// cancel 调用网关撤单；网关返回的错误（参数不合法）按无确定答复处理。
func (c *Collector) cancel(ctx context.Context, source, id string, side Side, pair string) CancelOutcome {
	outcome, err := c.gw.Cancel(ctx, id, side, pair)
	if err != nil {
		c.logger.Error("cancel request rejected",
			zap.String("source", source),
			zap.String("order_id", id),
			zap.String("pair", pair),
			zap.Error(err))
		outcome = CancelTransient
	}
	metrics.RecordCancel(source, outcome.String())
	if outcome == CancelTransient {
		c.logger.Warn("cancel got no definitive answer, will retry later",
			zap.String("source", source),
			zap.String("order_id", id),
			zap.String("side", string(side)),
			zap.String("pair", pair))
	}
	return outcome
}

func (c *Collector) finish(rep *Report) {
	metrics.RecordReport(rep.Operation, rep.Failed, rep.Passes)
	fields := []zap.Field{
		zap.String("operation", rep.Operation),
		zap.String("pair", rep.Pair),
		zap.Int("total", rep.TotalOrders),
		zap.Int("cleared", rep.ClearedAll),
		zap.Int("cleared_success", rep.ClearedSuccess),
		zap.Int("cleared_marked", rep.ClearedOnlyMarked),
		zap.Int("passes", rep.Passes),
	}
	if rep.Failed {
		c.logger.Warn(rep.LogMessage, fields...)
		return
	}
	c.logger.Info(rep.LogMessage, fields...)
}
