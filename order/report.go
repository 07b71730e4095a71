package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Report 是一次清理操作的结果汇总，只用于返回，不落盘。
type Report struct {
	Operation string
	Pair      string

	TotalOrders       int
	ClearedAll        int // ClearedSuccess + ClearedOnlyMarked
	ClearedSuccess    int
	ClearedOnlyMarked int

	// BuyNotional 成功撤销的买单计价币金额，SellNotional 为卖单基础币数量。
	BuyNotional  decimal.Decimal
	SellNotional decimal.Decimal

	Passes int
	Failed bool

	Local   *Report
	Unknown *Report

	LogMessage string
}

func newReport(op, pair string) *Report {
	return &Report{
		Operation:    op,
		Pair:         pair,
		BuyNotional:  decimal.Zero,
		SellNotional: decimal.Zero,
	}
}

// tally 按撤单结果累加计数。
func (r *Report) tally(outcome CancelOutcome, side Side, notional decimal.Decimal) {
	switch outcome {
	case Cancelled:
		r.ClearedSuccess++
		r.ClearedAll++
		if side == SideBuy {
			r.BuyNotional = r.BuyNotional.Add(notional)
		} else {
			r.SellNotional = r.SellNotional.Add(notional)
		}
	case CancelNotFound:
		r.ClearedOnlyMarked++
		r.ClearedAll++
	}
}

func (r *Report) add(o *Report) {
	r.TotalOrders += o.TotalOrders
	r.ClearedAll += o.ClearedAll
	r.ClearedSuccess += o.ClearedSuccess
	r.ClearedOnlyMarked += o.ClearedOnlyMarked
	r.BuyNotional = r.BuyNotional.Add(o.BuyNotional)
	r.SellNotional = r.SellNotional.Add(o.SellNotional)
	if o.Passes > r.Passes {
		r.Passes = o.Passes
	}
}

// String returns the human readable summary.
func (r *Report) String() string {
	return r.LogMessage
}

// summary 生成形如 "Cancelled 2 of 3 orders ..." 的描述。
func (r *Report) summary(what string) string {
	if r.TotalOrders <= 0 && r.ClearedAll == 0 {
		return fmt.Sprintf("No %s to cancel on %s.", what, r.Pair)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cancelled %d of %d %s on %s", r.ClearedAll, r.TotalOrders, what, r.Pair)
	if r.ClearedOnlyMarked > 0 {
		fmt.Fprintf(&b, " (%d already gone, only marked as closed)", r.ClearedOnlyMarked)
	}
	b.WriteString(".")
	if !r.BuyNotional.IsZero() || !r.SellNotional.IsZero() {
		fmt.Fprintf(&b, " Released %s quote in buy orders and %s base in sell orders.",
			r.BuyNotional.String(), r.SellNotional.String())
	}
	if r.Passes > 1 {
		fmt.Fprintf(&b, " Took %d passes.", r.Passes)
	}
	return b.String()
}
