package order

import (
	"context"
	"fmt"
)

// AllRequest 描述一次全量清理：先本地订单，再未知订单。
type AllRequest struct {
	Pair  string
	Force bool
	Side  Side
}

// ClearAll 依次执行 ClearLocal（全部用途）和 ClearUnknown，并合并两份报告。
//
// 本地清理失败时直接返回失败报告，不再尝试未知订单。未知订单清理失败或
// 估计数量为负时，整体视为失败，但报告中仍说明已完成的本地撤单。
func (c *Collector) ClearAll(ctx context.Context, req AllRequest) (*Report, error) {
	pair, err := c.resolvePair(req.Pair)
	if err != nil {
		return nil, err
	}
	rep := newReport("clear_all", pair)

	local, err := c.ClearLocal(ctx, LocalRequest{
		Purposes: AllPurposes(),
		Pair:     pair,
		Force:    req.Force,
		Side:     req.Side,
	})
	if err != nil {
		rep.Failed = true
		rep.LogMessage = fmt.Sprintf("Failed to cancel orders on %s: local orders could not be processed: %v.", pair, err)
		c.finish(rep)
		return rep, err
	}
	rep.Local = local

	unknown, err := c.ClearUnknown(ctx, UnknownRequest{
		Pair:  pair,
		Force: req.Force,
		Side:  req.Side,
	})
	if err != nil {
		rep.add(local)
		rep.Failed = true
		rep.LogMessage = fmt.Sprintf("Failed to cancel unknown orders on %s: %v. %s", pair, err, local.LogMessage)
		c.finish(rep)
		return rep, err
	}
	rep.Unknown = unknown

	if unknown.Failed || unknown.TotalOrders < 0 {
		rep.add(local)
		rep.Failed = true
		rep.LogMessage = fmt.Sprintf("Unknown orders on %s were not reconciled (%s). Local orders: %s",
			pair, unknown.LogMessage, local.LogMessage)
		c.finish(rep)
		return rep, nil
	}

	rep.add(local)
	rep.add(unknown)
	rep.LogMessage = fmt.Sprintf("Cancelled %d of %d orders on %s: %d of %d local, %d of %d unknown.",
		rep.ClearedAll, rep.TotalOrders, pair,
		local.ClearedAll, local.TotalOrders,
		unknown.ClearedAll, unknown.TotalOrders)
	if rep.ClearedOnlyMarked > 0 {
		rep.LogMessage += fmt.Sprintf(" %d were already gone and only marked as closed.", rep.ClearedOnlyMarked)
	}
	c.finish(rep)
	return rep, nil
}
