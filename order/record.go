package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts buy/sell in any case; empty input yields an empty side (no filter).
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: side %q", ErrInvalidRequest, s)
	}
}

// Purpose 标记订单由哪个模块下出。
type Purpose string

const (
	PurposeMarketMaking Purpose = "mm"
	PurposeOrderBook    Purpose = "ob"
	PurposeTradeBot     Purpose = "tb"
	PurposeLiquidity    Purpose = "liq"
	PurposePriceWatcher Purpose = "pw"
	PurposeManual       Purpose = "man"
	PurposeAll          Purpose = "all" // 统计用的汇总桶，不是真实用途
)

// KnownPurposes lists every purpose a record can carry, in display order.
var KnownPurposes = []Purpose{
	PurposeMarketMaking,
	PurposeOrderBook,
	PurposeTradeBot,
	PurposeLiquidity,
	PurposePriceWatcher,
	PurposeManual,
}

// Valid reports whether p is a real record purpose.
func (p Purpose) Valid() bool {
	for _, k := range KnownPurposes {
		if p == k {
			return true
		}
	}
	return false
}

// Record 是本地持久化的订单记录，机器人对其负责跟踪。
type Record struct {
	ID       string `json:"id"`
	Exchange string `json:"exchange"`
	Pair     string `json:"pair"`
	Account  string `json:"account,omitempty"`

	Side        Side            `json:"side"`
	Type        string          `json:"type,omitempty"`
	Price       decimal.Decimal `json:"price"`
	BaseAmount  decimal.Decimal `json:"baseAmount"`
	QuoteAmount decimal.Decimal `json:"quoteAmount"`
	Purpose     Purpose         `json:"purpose"`
	ClientID    string          `json:"clientId,omitempty"`

	IsProcessed     bool `json:"isProcessed"`
	IsClosed        bool `json:"isClosed"`
	IsCancelled     bool `json:"isCancelled"`
	IsExecuted      bool `json:"isExecuted"`
	IsExpired       bool `json:"isExpired"`
	IsCountExceeded bool `json:"isCountExceeded"`
	IsOutOfPwRange  bool `json:"isOutOfPwRange"`
	IsOutOfSpread   bool `json:"isOutOfSpread"`
	IsNotFound      bool `json:"isNotFound"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the record is out of every reconciliation pass.
func (r *Record) Terminal() bool {
	return r.IsProcessed
}

// Notional 返回该订单占用的名义金额：买单按计价币，卖单按基础币。
func (r *Record) Notional() decimal.Decimal {
	if r.Side == SideBuy {
		return r.QuoteAmount
	}
	return r.BaseAmount
}

// Clone returns a shallow copy; all fields are values.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// OpenOrder 是交易所返回的一条活跃订单，只在一次对账中使用。
type OpenOrder struct {
	ID     string
	Side   Side
	Pair   string
	Price  decimal.Decimal
	Amount decimal.Decimal
	Status string
}
