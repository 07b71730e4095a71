package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LocalRequest 描述一次本地订单清理。
type LocalRequest struct {
	Purposes PurposeFilter
	Pair     string // 空则使用默认交易对
	Force    bool
	Side     Side
	Match    func(*Record) bool
}

// ClearLocal 撤销本地存储中匹配条件的非终态订单。
//
// 每轮重新查询存储，跳过本次调用中已经处理过的订单：撤单成功的记录标记为
// cancelled，交易所报告不存在的只标记为已关闭，无确定答复的保持原样。
// 存储读写失败时中止并返回错误，不生成报告。
func (c *Collector) ClearLocal(ctx context.Context, req LocalRequest) (*Report, error) {
	if err := req.Purposes.Validate(); err != nil {
		return nil, err
	}
	if err := validateSide(req.Side); err != nil {
		return nil, err
	}
	pair, err := c.resolvePair(req.Pair)
	if err != nil {
		return nil, err
	}

	filter := c.baseFilter(pair, req.Side)
	filter.Purposes = req.Purposes
	filter.Match = req.Match

	rep := newReport("clear_local", pair)
	seen := make(map[string]struct{})
	handled := make(map[string]struct{})

	passes, err := c.policy(req.Force).Run(func(attempt int) (int, error) {
		records, err := c.repo.Find(ctx, filter)
		if err != nil {
			return 0, storeErr("load local orders", err)
		}
		remaining := 0
		for _, r := range records {
			if _, done := handled[r.ID]; done {
				continue
			}
			if _, ok := seen[r.ID]; !ok {
				seen[r.ID] = struct{}{}
				rep.TotalOrders++
			}

			outcome := c.cancel(ctx, "local", r.ID, r.Side, pair)
			closed, err := closeOnOutcome(r, outcome)
			if err != nil {
				return 0, err
			}
			if !closed {
				remaining++
				continue
			}
			if err := c.repo.Persist(ctx, r); err != nil {
				return 0, storeErr(fmt.Sprintf("persist order %s", r.ID), err)
			}
			handled[r.ID] = struct{}{}
			rep.tally(outcome, r.Side, r.Notional())
		}
		c.logger.Debug("local clear pass finished",
			zap.String("pair", pair),
			zap.Int("attempt", attempt),
			zap.Int("selected", len(records)),
			zap.Int("remaining", remaining))
		return remaining, nil
	})
	if err != nil {
		c.logger.Error("local clear aborted",
			zap.String("pair", pair),
			zap.String("purposes", req.Purposes.String()),
			zap.Error(err))
		return nil, err
	}

	rep.Passes = passes
	what := fmt.Sprintf("%s orders", req.Purposes.String())
	if req.Side != "" {
		what = fmt.Sprintf("%s %s orders", req.Purposes.String(), req.Side)
	}
	rep.LogMessage = rep.summary(what)
	c.finish(rep)
	return rep, nil
}
