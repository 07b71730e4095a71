package container

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"market-maker-go/config"
	"market-maker-go/gateway"
	"market-maker-go/infrastructure/alert"
	"market-maker-go/infrastructure/logger"
	"market-maker-go/internal/store"
	"market-maker-go/metrics"
	"market-maker-go/order"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	cfg        *config.AppConfig
	configPath string
	sweep      bool

	// 基础设施
	logger *logger.Logger
	store  *store.Store
	alerts *alert.Manager

	// 交易所网关
	gateway *gateway.RESTGateway

	// 核心服务
	collector *order.Collector
	placer    *order.Placer
	sweeper   *order.Sweeper

	// HTTP服务器
	metricsServer *httpServerComponent

	// 生命周期管理
	lifecycle *LifecycleManager
}

// Option 调整容器的构建方式
type Option func(*Container)

// WithSweeper 注册定时清理组件（常驻进程使用，一次性命令不需要）
func WithSweeper() Option {
	return func(c *Container) { c.sweep = true }
}

// New 创建新的Container实例
func New(configPath string, opts ...Option) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	c := NewFromConfig(cfg, opts...)
	c.configPath = configPath
	return c, nil
}

// NewFromConfig 使用已加载的配置创建容器
func NewFromConfig(cfg config.AppConfig, opts ...Option) *Container {
	c := &Container{cfg: &cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	if err := c.buildGateway(); err != nil {
		return fmt.Errorf("build gateway failed: %w", err)
	}

	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}

	c.registerLifecycleComponents()
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.store, err = store.Open(store.Options{
		Path:       c.cfg.Store.Path,
		InMemory:   c.cfg.Store.InMemory,
		SyncWrites: c.cfg.Store.SyncWrites,
	}, c.logger.Named("store"))
	if err != nil {
		return fmt.Errorf("open order store failed: %w", err)
	}

	c.logger.Info("infrastructure built")
	return nil
}

func (c *Container) buildGateway() error {
	gw := c.cfg.Gateway
	var err error
	c.gateway, err = gateway.NewRESTGateway(gateway.Config{
		BaseURL:           gw.BaseURL,
		APIKey:            gw.APIKey,
		APISecret:         gw.APISecret,
		Timeout:           time.Duration(gw.TimeoutMs) * time.Millisecond,
		RateLimit:         gw.RateLimit,
		Burst:             gw.Burst,
		UnknownOrderCodes: gw.UnknownOrderCodes,
	}, c.logger.Named("gateway"))
	if err != nil {
		return err
	}

	c.logger.Info("gateway built", zap.String("base_url", gw.BaseURL))
	return nil
}

func (c *Container) buildCoreServices() error {
	var syncer order.Syncer = order.NopSyncer{}
	if c.cfg.Collector.StatusSync {
		syncer = order.NewStatusSyncer(c.gateway, c.store, c.logger.Named("syncer"))
	}

	var err error
	c.collector, err = order.NewCollector(c.store, c.gateway, syncer, order.CollectorConfig{
		Exchange:    c.cfg.Exchange,
		Account:     c.cfg.Account,
		DefaultPair: c.cfg.DefaultPair,
		MaxTries:    c.cfg.Collector.MaxTries,
	}, c.logger.Named("collector"))
	if err != nil {
		return err
	}

	c.placer = order.NewPlacer(c.gateway, c.store, c.cfg.Exchange, c.cfg.Account, c.logger.Named("placer"))
	symbolConstraints := make(map[string]order.SymbolConstraints)
	for sym, sc := range c.cfg.Symbols {
		symbolConstraints[sym] = order.SymbolConstraints{
			TickSize:    decimal.NewFromFloat(sc.TickSize),
			StepSize:    decimal.NewFromFloat(sc.StepSize),
			MinQty:      decimal.NewFromFloat(sc.MinQty),
			MaxQty:      decimal.NewFromFloat(sc.MaxQty),
			MinNotional: decimal.NewFromFloat(sc.MinNotional),
		}
	}
	c.placer.SetConstraints(symbolConstraints)

	c.sweeper = order.NewSweeper(c.collector, sweeperConfig(*c.cfg), c.logger.Named("sweeper"))
	if c.cfg.Alert.Enabled {
		if err := c.buildAlerts(); err != nil {
			return err
		}
		c.sweeper.SetHook(c.onSweepResult)
	}

	c.logger.Info("core services built")
	return nil
}

func (c *Container) buildAlerts() error {
	channels := []alert.Channel{alert.NewLogChannel(c.logger.Named("alert"))}
	if url := c.cfg.Alert.WebhookURL; url != "" {
		wh, err := alert.NewWebhookChannel(url, 5*time.Second)
		if err != nil {
			return fmt.Errorf("create webhook channel failed: %w", err)
		}
		channels = append(channels, wh)
	}
	throttle := time.Duration(c.cfg.Alert.ThrottleSec) * time.Second
	if throttle == 0 {
		throttle = 10 * time.Minute
	}
	c.alerts = alert.NewManager(channels, throttle)
	return nil
}

// onSweepResult 清理失败时告警，恢复后清除限流
func (c *Container) onSweepResult(ctx context.Context, pair string, rep *order.Report, err error) {
	key := "sweep:" + pair
	if err == nil && (rep == nil || !rep.Failed) {
		c.alerts.Resolve(key)
		return
	}

	a := alert.Alert{Level: alert.LevelWarning, Key: key, Fields: map[string]interface{}{"pair": pair}}
	switch {
	case err != nil:
		a.Level = alert.LevelError
		a.Message = fmt.Sprintf("order sweep on %s aborted: %v", pair, err)
	default:
		a.Message = rep.LogMessage
		a.Fields["total_orders"] = rep.TotalOrders
		a.Fields["cleared"] = rep.ClearedAll
	}
	if sendErr := c.alerts.Send(ctx, a); sendErr != nil {
		c.logger.Warn("send alert failed", zap.String("pair", pair), zap.Error(sendErr))
	}
}

func sweeperConfig(cfg config.AppConfig) order.SweeperConfig {
	pairs := cfg.Pairs
	if len(pairs) == 0 && cfg.DefaultPair != "" {
		pairs = []string{cfg.DefaultPair}
	}
	return order.SweeperConfig{
		Interval: cfg.Collector.SweepInterval(),
		Pairs:    pairs,
		Mode:     order.SweepMode(strings.ToLower(cfg.Collector.SweepMode)),
		Force:    cfg.Collector.Force,
	}
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle = NewLifecycleManager(c.logger.Named("lifecycle"))
	if c.cfg.Metrics.Enabled {
		c.metricsServer = &httpServerComponent{
			name:    "metrics",
			addr:    c.cfg.Metrics.Addr,
			handler: metrics.Handler(),
			logger:  c.logger.Named("metrics"),
		}
		c.lifecycle.Register("metrics", c.metricsServer)
	}
	if c.sweep {
		c.lifecycle.Register("sweeper", c.sweeper)
	}
}

// Start 启动所有组件
func (c *Container) Start(ctx context.Context) error {
	if c.lifecycle == nil {
		return fmt.Errorf("container is not built")
	}
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

// Stop 停止组件并关闭存储。退出时不撤单，挂单由下一次清理处理。
func (c *Container) Stop() error {
	if c.logger != nil {
		c.logger.Info("stopping container...")
	}

	var firstErr error
	if c.lifecycle != nil {
		if err := c.lifecycle.StopAll(); err != nil {
			c.logger.LogError(err, map[string]interface{}{"action": "stop"})
			firstErr = err
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close store: %w", err)
		}
	}
	if c.logger != nil {
		c.logger.Close()
	}
	return firstErr
}

// HealthCheck 检查所有组件健康状态
func (c *Container) HealthCheck() error {
	if c.lifecycle == nil {
		return fmt.Errorf("container is not built")
	}
	return c.lifecycle.CheckHealth()
}

// ApplyConfig 应用热更新的配置：重试轮数、定时清理参数。
// 交易所、存储、网关凭证的变更需要重启进程。
func (c *Container) ApplyConfig(cfg config.AppConfig) {
	if cfg.Exchange != c.cfg.Exchange || cfg.Store != c.cfg.Store || cfg.Gateway.BaseURL != c.cfg.Gateway.BaseURL {
		c.logger.Warn("config change requires restart, only collector settings applied")
	}
	c.cfg.Collector = cfg.Collector
	c.cfg.Pairs = cfg.Pairs
	if cfg.Collector.MaxTries > 0 {
		c.collector.SetMaxTries(cfg.Collector.MaxTries)
	}
	next := sweeperConfig(*c.cfg)
	c.sweeper.Reconfigure(next)
	c.logger.Info("collector config applied",
		zap.Int("max_tries", c.collector.Config().MaxTries),
		zap.Duration("sweep_interval", c.sweeper.Interval()),
		zap.String("sweep_mode", string(next.Mode)))
}

// WatchConfig 监听配置文件并热更新，阻塞到 ctx 结束。
func (c *Container) WatchConfig(ctx context.Context) error {
	if c.configPath == "" {
		return fmt.Errorf("container was not created from a config file")
	}
	w := config.Watcher{Path: c.configPath, Logger: c.logger.Named("config")}
	return w.Start(ctx, c.ApplyConfig)
}

func (c *Container) Config() config.AppConfig { return *c.cfg }
func (c *Container) Logger() *logger.Logger { return c.logger }
func (c *Container) Collector() *order.Collector { return c.collector }
func (c *Container) Placer() *order.Placer { return c.placer }
func (c *Container) Sweeper() *order.Sweeper { return c.sweeper }

// MetricsAddr 指标服务的实际监听地址，未启用时为空
func (c *Container) MetricsAddr() string {
	if c.metricsServer == nil {
		return ""
	}
	return c.metricsServer.Addr()
}
