package order

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest 请求参数不合法（空用途集合、未知用途、错误方向等）。
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStore 存储读写失败，本次调用中止。
	ErrStore = errors.New("order store failure")
	// ErrInvalidRecord 记录违反生命周期不变量，拒绝持久化。
	ErrInvalidRecord = errors.New("invalid order record")
)

// CloseReason 订单进入终态的原因。
type CloseReason string

const (
	ReasonCancelled     CloseReason = "cancelled"
	ReasonNotFound      CloseReason = "not_found"
	ReasonExecuted      CloseReason = "executed"
	ReasonExpired       CloseReason = "expired"
	ReasonCountExceeded CloseReason = "count_exceeded"
	ReasonOutOfPwRange  CloseReason = "out_of_pw_range"
	ReasonOutOfSpread   CloseReason = "out_of_spread"
	ReasonProcessedOnly CloseReason = "processed"
)

// closeFlags 每个原因需要额外置位的子标志。
var closeFlags = map[CloseReason]func(r *Record){
	ReasonCancelled:     func(r *Record) { r.IsCancelled = true },
	ReasonNotFound:      func(r *Record) { r.IsNotFound = true },
	ReasonExecuted:      func(r *Record) { r.IsExecuted = true },
	ReasonExpired:       func(r *Record) { r.IsExpired = true },
	ReasonCountExceeded: func(r *Record) { r.IsCountExceeded = true },
	ReasonOutOfPwRange:  func(r *Record) { r.IsOutOfPwRange = true },
	ReasonOutOfSpread:   func(r *Record) { r.IsOutOfSpread = true },
	ReasonProcessedOnly: func(r *Record) {},
}

// Close 把记录转入终态。重复调用只会补齐标志，不会回退。
func (r *Record) Close(reason CloseReason) error {
	set, ok := closeFlags[reason]
	if !ok {
		return fmt.Errorf("unknown close reason %q", reason)
	}
	set(r)
	r.IsClosed = true
	r.IsProcessed = true
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// closeOnOutcome 按撤单结果关闭记录。CancelTransient 不关闭，返回 false。
func closeOnOutcome(r *Record, outcome CancelOutcome) (bool, error) {
	var reason CloseReason
	switch outcome {
	case Cancelled:
		reason = ReasonCancelled
	case CancelNotFound:
		reason = ReasonNotFound
	default:
		return false, nil
	}
	if err := r.Close(reason); err != nil {
		return false, fmt.Errorf("close order %s: %w", r.ID, err)
	}
	return true, nil
}

// Validate 检查生命周期不变量：任一关闭子标志为真时必须已关闭且已处理。
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if r.Pair == "" {
		return fmt.Errorf("%w: %s has empty pair", ErrInvalidRecord, r.ID)
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("%w: %s has side %q", ErrInvalidRecord, r.ID, r.Side)
	}
	if !r.Purpose.Valid() {
		return fmt.Errorf("%w: %s has purpose %q", ErrInvalidRecord, r.ID, r.Purpose)
	}
	subFlag := r.IsCancelled || r.IsExpired || r.IsCountExceeded ||
		r.IsOutOfPwRange || r.IsOutOfSpread || r.IsNotFound
	if subFlag && !(r.IsClosed && r.IsProcessed) {
		return fmt.Errorf("%w: %s has a close flag set but is not closed and processed", ErrInvalidRecord, r.ID)
	}
	return nil
}

// CloseReasonOf 返回记录的关闭原因描述，非终态返回空串。
func CloseReasonOf(r *Record) CloseReason {
	switch {
	case !r.IsProcessed:
		return ""
	case r.IsCancelled:
		return ReasonCancelled
	case r.IsNotFound:
		return ReasonNotFound
	case r.IsExecuted:
		return ReasonExecuted
	case r.IsExpired:
		return ReasonExpired
	case r.IsCountExceeded:
		return ReasonCountExceeded
	case r.IsOutOfPwRange:
		return ReasonOutOfPwRange
	case r.IsOutOfSpread:
		return ReasonOutOfSpread
	default:
		return ReasonProcessedOnly
	}
}
