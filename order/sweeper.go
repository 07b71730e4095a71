package order

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"market-maker-go/metrics"
)

// SweepMode 定时清理执行的操作。
type SweepMode string

const (
	SweepUnknown SweepMode = "unknown" // 只清理未知订单
	SweepAll     SweepMode = "all"     // 本地订单 + 未知订单
)

// SweeperConfig 定时清理配置
type SweeperConfig struct {
	Interval time.Duration // 清理间隔
	Pairs    []string
	Mode     SweepMode
	Force    bool
}

// SweepHook 每个交易对清理完成后调用，rep 可能为 nil
type SweepHook func(ctx context.Context, pair string, rep *Report, err error)

// Sweeper 定时对各交易对执行清理
type Sweeper struct {
	collector *Collector
	logger    *zap.Logger

	mu       sync.RWMutex
	interval time.Duration
	pairs    []string
	mode     SweepMode
	force    bool

	resetChan chan time.Duration
	stopChan  chan struct{}
	doneChan  chan struct{}
	running   bool
	hook      SweepHook

	// 统计信息
	totalSweeps   int64
	failedSweeps  int64
	ordersCleared int64
	lastSweepTime time.Time
}

// NewSweeper 创建定时清理器
func NewSweeper(collector *Collector, cfg SweeperConfig, logger *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second // 默认30秒
	}
	if cfg.Mode == "" {
		cfg.Mode = SweepUnknown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		collector: collector,
		logger:    logger,
		interval:  cfg.Interval,
		pairs:     normalizePairs(cfg.Pairs),
		mode:      cfg.Mode,
		force:     cfg.Force,
		resetChan: make(chan time.Duration, 1),
	}
}

// SetHook 设置清理结果回调（告警等）
func (s *Sweeper) SetHook(h SweepHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// Start 启动清理循环
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sweeper already running")
	}
	// 每次启动使用新的通道，Stop 之后可以再次 Start
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.running = true
	go s.sweepLoop(ctx, s.stopChan, s.doneChan)
	return nil
}

// Stop 停止清理循环，等待正在进行的清理结束
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()
	close(stop)
	<-done
	return nil
}

// Health 用于生命周期检查
func (s *Sweeper) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return errors.New("sweeper not running")
	}
	return nil
}

func (s *Sweeper) sweepLoop(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer func() {
		// ctx 取消导致退出时也要标记为未运行
		s.mu.Lock()
		if s.doneChan == done {
			s.running = false
		}
		s.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case d := <-s.resetChan:
			ticker.Reset(d)
		case <-ticker.C:
			_ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce 对所有交易对执行一次清理，返回最后一个错误
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	s.mu.RLock()
	pairs := append([]string(nil), s.pairs...)
	mode, force, hook := s.mode, s.force, s.hook
	s.mu.RUnlock()
	if len(pairs) == 0 {
		pairs = []string{""} // 使用默认交易对
	}

	var lastErr error
	var cleared int64
	failed := false
	for _, pair := range pairs {
		rep, err := s.sweepPair(ctx, pair, mode, force)
		pairLabel := pair
		if rep != nil {
			pairLabel = rep.Pair
			cleared += int64(rep.ClearedAll)
		}
		pairFailed := err != nil || (rep != nil && rep.Failed)
		metrics.RecordSweep(pairLabel, pairFailed)
		if err != nil {
			lastErr = err
			s.logger.Error("sweep failed", zap.String("pair", pairLabel), zap.Error(err))
		}
		if pairFailed {
			failed = true
		}
		if hook != nil {
			hook(ctx, pairLabel, rep, err)
		}
	}

	s.mu.Lock()
	s.totalSweeps++
	if failed {
		s.failedSweeps++
	}
	s.ordersCleared += cleared
	s.lastSweepTime = time.Now()
	s.mu.Unlock()
	return lastErr
}

func (s *Sweeper) sweepPair(ctx context.Context, pair string, mode SweepMode, force bool) (*Report, error) {
	if mode == SweepAll {
		return s.collector.ClearAll(ctx, AllRequest{Pair: pair, Force: force})
	}
	return s.collector.ClearUnknown(ctx, UnknownRequest{Pair: pair, Force: force})
}

// SweeperStats 清理统计信息
type SweeperStats struct {
	TotalSweeps   int64
	FailedSweeps  int64
	OrdersCleared int64
	LastSweepTime time.Time
	Interval      time.Duration
}

// Stats 获取清理统计信息
func (s *Sweeper) Stats() SweeperStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SweeperStats{
		TotalSweeps:   s.totalSweeps,
		FailedSweeps:  s.failedSweeps,
		OrdersCleared: s.ordersCleared,
		LastSweepTime: s.lastSweepTime,
		Interval:      s.interval,
	}
}

// Interval 当前清理间隔
func (s *Sweeper) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// Reconfigure 更新间隔、交易对、模式（配置热更新）
func (s *Sweeper) Reconfigure(cfg SweeperConfig) {
	s.mu.Lock()
	if len(cfg.Pairs) > 0 {
		s.pairs = normalizePairs(cfg.Pairs)
	}
	if cfg.Mode != "" {
		s.mode = cfg.Mode
	}
	s.force = cfg.Force
	if cfg.Interval > 0 && cfg.Interval != s.interval {
		s.interval = cfg.Interval
		// 只保留最新的间隔
		select {
		case <-s.resetChan:
		default:
		}
		s.resetChan <- cfg.Interval
	}
	s.mu.Unlock()
}

func normalizePairs(pairs []string) []string {
	res := make([]string, 0, len(pairs))
	for _, p := range pairs {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
