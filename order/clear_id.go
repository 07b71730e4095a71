package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ClearByID 撤销单个订单。本地有非终态记录时同时更新记录，否则只向交易所撤单。
func (c *Collector) ClearByID(ctx context.Context, id, pair string, side Side) (*Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrInvalidRequest)
	}
	if err := validateSide(side); err != nil {
		return nil, err
	}
	pair, err := c.resolvePair(pair)
	if err != nil {
		return nil, err
	}

	filter := c.baseFilter(pair, "")
	filter.Match = ByID(id)
	records, err := c.repo.Find(ctx, filter)
	if err != nil {
		return nil, storeErr("load order", err)
	}

	rep := newReport("clear_id", pair)
	rep.TotalOrders = 1
	rep.Passes = 1

	if len(records) == 0 {
		if side == "" {
			return nil, fmt.Errorf("%w: order %s is not tracked locally, side is required", ErrInvalidRequest, id)
		}
		outcome := c.cancel(ctx, "single", id, side, pair)
		rep.tally(outcome, side, decimal.Zero)
		rep.LogMessage = singleSummary(id, pair, outcome, false)
		c.finish(rep)
		return rep, nil
	}

	r := records[0]
	outcome := c.cancel(ctx, "single", r.ID, r.Side, pair)
	closed, err := closeOnOutcome(r, outcome)
	if err != nil {
		return nil, err
	}
	if closed {
		if err := c.repo.Persist(ctx, r); err != nil {
			return nil, storeErr(fmt.Sprintf("persist order %s", r.ID), err)
		}
	}
	rep.tally(outcome, r.Side, r.Notional())
	rep.LogMessage = singleSummary(id, pair, outcome, true)
	c.finish(rep)
	return rep, nil
}

func singleSummary(id, pair string, outcome CancelOutcome, tracked bool) string {
	kind := "untracked"
	if tracked {
		kind = "tracked"
	}
	switch outcome {
	case Cancelled:
		return fmt.Sprintf("Cancelled %s order %s on %s.", kind, id, pair)
	case CancelNotFound:
		if !tracked {
			return fmt.Sprintf("Order %s on %s no longer exists.", id, pair)
		}
		return fmt.Sprintf("Order %s on %s no longer exists, marked as closed.", id, pair)
	default:
		return fmt.Sprintf("Unable to cancel %s order %s on %s, try again later.", kind, id, pair)
	}
}
