package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// CancelOutcome 撤单结果的三种状态。零值为 CancelTransient，未知情况一律按可重试处理。
type CancelOutcome int

const (
	// CancelTransient 超时、网络错误或限流，没有确定答复。
	CancelTransient CancelOutcome = iota
	// Cancelled 交易所确认撤单成功。
	Cancelled
	// CancelNotFound 交易所明确表示订单已不存在。
	CancelNotFound
)

func (o CancelOutcome) String() string {
	switch o {
	case Cancelled:
		return "cancelled"
	case CancelNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// PlaceRequest 下单参数。
type PlaceRequest struct {
	Pair     string
	Side     Side
	Type     string // limit / market
	Price    decimal.Decimal
	Amount   decimal.Decimal // 基础币数量
	ClientID string
}

// Gateway 是单个交易所的订单接口。
type Gateway interface {
	// Cancel 撤销订单。订单不存在时返回 CancelNotFound 而不是错误；
	// error 只用于参数不合法等调用方错误。
	Cancel(ctx context.Context, orderID string, side Side, pair string) (CancelOutcome, error)
	// ListOpenOrders 返回交易对的活跃订单，side 为空表示双向。
	ListOpenOrders(ctx context.Context, pair string, side Side) ([]OpenOrder, error)
	// Place 下单并返回交易所订单号。
	Place(ctx context.Context, req PlaceRequest) (string, error)
}

// RemoteState 交易所侧的订单状态。
type RemoteState string

const (
	RemoteOpen      RemoteState = "open"
	RemotePartial   RemoteState = "partially_filled"
	RemoteFilled    RemoteState = "filled"
	RemoteCancelled RemoteState = "cancelled"
	RemoteNotFound  RemoteState = "not_found"
	RemoteUnknown   RemoteState = "unknown"
)

// RemoteStatus 单个订单在交易所的状态快照。
type RemoteStatus struct {
	State  RemoteState
	Filled decimal.Decimal
}

// OrderStatusGateway 可查询单个订单状态的网关，用于 StatusSyncer。
type OrderStatusGateway interface {
	OrderStatus(ctx context.Context, orderID, pair string) (RemoteStatus, error)
}
