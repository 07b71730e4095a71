package order

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"market-maker-go/metrics"
)

// PurposeStats 某一用途的挂单统计。
type PurposeStats struct {
	Purpose   Purpose
	BuyCount  int
	BuyQuote  decimal.Decimal // 买单计价币金额之和
	SellCount int
	SellBase  decimal.Decimal // 卖单基础币数量之和
}

// Total 返回买卖单总数。
func (s PurposeStats) Total() int {
	return s.BuyCount + s.SellCount
}

func (s *PurposeStats) add(r *Record) {
	if r.Side == SideBuy {
		s.BuyCount++
		s.BuyQuote = s.BuyQuote.Add(r.QuoteAmount)
		return
	}
	s.SellCount++
	s.SellBase = s.SellBase.Add(r.BaseAmount)
}

func newPurposeStats(p Purpose) *PurposeStats {
	return &PurposeStats{Purpose: p, BuyQuote: decimal.Zero, SellBase: decimal.Zero}
}

// StatsByPurpose 统计交易对上本地非终态订单，按用途分组并附带 "all" 汇总桶。
// account 为空表示主账户。除刷新步骤外没有副作用。
func (c *Collector) StatsByPurpose(ctx context.Context, pair, account string) (map[Purpose]PurposeStats, error) {
	pair, err := c.resolvePair(pair)
	if err != nil {
		return nil, err
	}
	filter := c.baseFilter(pair, "")
	filter.Account = account

	records, err := c.repo.Find(ctx, filter)
	if err != nil {
		return nil, storeErr("load local orders", err)
	}
	refreshed, err := c.syncer.Refresh(ctx, records, pair)
	if err != nil {
		return nil, storeErr("refresh local orders", err)
	}

	buckets := map[Purpose]*PurposeStats{PurposeAll: newPurposeStats(PurposeAll)}
	for _, r := range refreshed {
		if r.Terminal() {
			continue
		}
		b, ok := buckets[r.Purpose]
		if !ok {
			b = newPurposeStats(r.Purpose)
			buckets[r.Purpose] = b
		}
		b.add(r)
		buckets[PurposeAll].add(r)
	}

	res := make(map[Purpose]PurposeStats, len(buckets))
	for p, b := range buckets {
		res[p] = *b
	}
	// 没有订单的用途也要写 0，否则旧值一直留在 gauge 上
	gauges := append([]Purpose{PurposeAll}, KnownPurposes...)
	for _, p := range gauges {
		b, ok := buckets[p]
		if !ok {
			b = newPurposeStats(p)
		}
		metrics.UpdateOpenOrders(pair, string(p), b.BuyCount, b.SellCount,
			b.BuyQuote.InexactFloat64(), b.SellBase.InexactFloat64())
	}
	return res, nil
}

// StatsDelta 两次统计之间的变化量。
type StatsDelta struct {
	BuyCount  int
	BuyQuote  decimal.Decimal
	SellCount int
	SellBase  decimal.Decimal
}

// StatsSession 保存一个报告会话内上一次的统计快照，用于计算变化量。
// 每个操作员会话或定时任务各自创建一个，互不影响。
type StatsSession struct {
	mu   sync.Mutex
	prev map[string]map[Purpose]PurposeStats
}

func NewStatsSession() *StatsSession {
	return &StatsSession{prev: make(map[string]map[Purpose]PurposeStats)}
}

// Observe 记录新快照并返回相对上一次的变化量；同一 key 第一次观察时 first 为 true。
func (s *StatsSession) Observe(key string, cur map[Purpose]PurposeStats) (delta map[Purpose]StatsDelta, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.prev[key]
	s.prev[key] = cur
	if !ok {
		return nil, true
	}
	delta = make(map[Purpose]StatsDelta)
	for p, c := range cur {
		old, ok := prev[p]
		if !ok {
			old = *newPurposeStats(p)
		}
		delta[p] = diffStats(old, c)
	}
	for p, old := range prev {
		if _, ok := cur[p]; !ok {
			delta[p] = diffStats(old, *newPurposeStats(p))
		}
	}
	return delta, false
}

func diffStats(old, cur PurposeStats) StatsDelta {
	return StatsDelta{
		BuyCount:  cur.BuyCount - old.BuyCount,
		BuyQuote:  cur.BuyQuote.Sub(old.BuyQuote),
		SellCount: cur.SellCount - old.SellCount,
		SellBase:  cur.SellBase.Sub(old.SellBase),
	}
}

// FormatStats 生成可读的统计摘要，delta 可以为空。
func FormatStats(pair string, stats map[Purpose]PurposeStats, delta map[Purpose]StatsDelta) string {
	var b strings.Builder
	all := stats[PurposeAll]
	fmt.Fprintf(&b, "Open orders on %s: %d", pair, all.Total())
	if all.Total() == 0 {
		b.WriteString(".")
		return b.String()
	}
	b.WriteString("\n")
	keys := append([]Purpose{}, KnownPurposes...)
	keys = append(keys, PurposeAll)
	for _, p := range keys {
		s, ok := stats[p]
		if !ok || s.Total() == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: %d buy (%s quote), %d sell (%s base)",
			p, s.BuyCount, s.BuyQuote.String(), s.SellCount, s.SellBase.String())
		if d, ok := delta[p]; ok {
			fmt.Fprintf(&b, " [%+d buy, %+d sell]", d.BuyCount, d.SellCount)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
