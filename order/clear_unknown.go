package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"market-maker-go/metrics"
)

// UnknownRequest 描述一次未知订单清理。
type UnknownRequest struct {
	Pair  string
	Force bool
	Side  Side
}

// ClearUnknown 撤销交易所上存在、但本地存储里没有非终态记录的订单。
//
// 本地记录先经过 Syncer 刷新，已成交或已消失的订单不再算作已知订单。
// 撤单只依据 id 集合差；TotalOrders 是交易所活跃数减去本地数的估计值，可能为负。
// 本操作从不修改存储。获取交易所活跃订单失败时返回 Failed 报告。
func (c *Collector) ClearUnknown(ctx context.Context, req UnknownRequest) (*Report, error) {
	if err := validateSide(req.Side); err != nil {
		return nil, err
	}
	pair, err := c.resolvePair(req.Pair)
	if err != nil {
		return nil, err
	}

	filter := c.baseFilter(pair, req.Side)
	rep := newReport("clear_unknown", pair)
	handled := make(map[string]struct{})
	seen := make(map[string]struct{})
	var listErr error

	passes, err := c.policy(req.Force).Run(func(attempt int) (int, error) {
		known, err := c.knownOrderIDs(ctx, filter, pair)
		if err != nil {
			return 0, err
		}

		open, err := c.gw.ListOpenOrders(ctx, pair, req.Side)
		if err != nil {
			listErr = err
			return 0, nil
		}
		if req.Side != "" {
			open = filterOpenBySide(open, req.Side)
		}
		if attempt == 1 {
			rep.TotalOrders = len(open) - len(known)
			metrics.UpdateUnknownEstimate(pair, rep.TotalOrders)
		}

		remaining := 0
		for _, o := range open {
			if _, ok := known[o.ID]; ok {
				continue
			}
			if _, done := handled[o.ID]; done {
				continue
			}
			seen[o.ID] = struct{}{}
			outcome := c.cancel(ctx, "unknown", o.ID, o.Side, pair)
			if outcome == CancelTransient {
				remaining++
				continue
			}
			handled[o.ID] = struct{}{}
			rep.tally(outcome, o.Side, openNotional(o))
			c.logger.Info("unknown order closed",
				zap.String("order_id", o.ID),
				zap.String("side", string(o.Side)),
				zap.String("pair", pair),
				zap.String("outcome", outcome.String()))
		}
		return remaining, nil
	})
	rep.Passes = passes
	if err != nil {
		c.logger.Error("unknown clear aborted", zap.String("pair", pair), zap.Error(err))
		return nil, err
	}

	if listErr != nil {
		rep.Failed = true
		rep.LogMessage = fmt.Sprintf("Unable to get open orders on %s: %v.", pair, listErr)
		if rep.ClearedAll > 0 {
			rep.LogMessage += fmt.Sprintf(" %d unknown orders were cancelled before the failure.", rep.ClearedAll)
		}
		c.finish(rep)
		return rep, nil
	}

	rep.LogMessage = unknownSummary(rep, len(seen))
	c.finish(rep)
	return rep, nil
}

// knownOrderIDs 加载并刷新本地非终态记录，返回刷新后仍存活的订单 id。
func (c *Collector) knownOrderIDs(ctx context.Context, filter Filter, pair string) (map[string]struct{}, error) {
	records, err := c.repo.Find(ctx, filter)
	if err != nil {
		return nil, storeErr("load local orders", err)
	}
	refreshed, err := c.syncer.Refresh(ctx, records, pair)
	if err != nil {
		return nil, storeErr("refresh local orders", err)
	}
	known := make(map[string]struct{}, len(refreshed))
	for _, r := range refreshed {
		if !r.Terminal() {
			known[r.ID] = struct{}{}
		}
	}
	return known, nil
}

func unknownSummary(rep *Report, found int) string {
	if found == 0 {
		return fmt.Sprintf("No unknown orders to cancel on %s.", rep.Pair)
	}
	msg := fmt.Sprintf("Cancelled %d of %d unknown orders on %s (estimated %d)", rep.ClearedAll, found, rep.Pair, rep.TotalOrders)
	if rep.ClearedOnlyMarked > 0 {
		msg += fmt.Sprintf(", %d of them were already gone", rep.ClearedOnlyMarked)
	}
	msg += "."
	if rep.Passes > 1 {
		msg += fmt.Sprintf(" Took %d passes.", rep.Passes)
	}
	return msg
}

func filterOpenBySide(open []OpenOrder, side Side) []OpenOrder {
	res := open[:0:0]
	for _, o := range open {
		if o.Side == side {
			res = append(res, o)
		}
	}
	return res
}

// openNotional 买单按计价币（价格×数量），卖单按基础币数量。
func openNotional(o OpenOrder) decimal.Decimal {
	if o.Side == SideBuy {
		return o.Price.Mul(o.Amount)
	}
	return o.Amount
}
