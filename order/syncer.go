package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Syncer 在对账前刷新本地记录，可能把已成交或已消失的订单转入终态。
type Syncer interface {
	Refresh(ctx context.Context, records []*Record, pair string) ([]*Record, error)
}

// NopSyncer 原样返回记录。
type NopSyncer struct{}

func (NopSyncer) Refresh(_ context.Context, records []*Record, _ string) ([]*Record, error) {
	return records, nil
}

// StatusSyncer 逐个向交易所查询订单状态，以交易所为准更新本地记录。
type StatusSyncer struct {
	gw     OrderStatusGateway
	repo   Repository
	logger *zap.Logger
}

func NewStatusSyncer(gw OrderStatusGateway, repo Repository, logger *zap.Logger) *StatusSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusSyncer{gw: gw, repo: repo, logger: logger}
}

// Refresh 查询失败的订单保持原样，留给下一次刷新；存储失败直接返回。
func (s *StatusSyncer) Refresh(ctx context.Context, records []*Record, pair string) ([]*Record, error) {
	for _, r := range records {
		if r.Terminal() {
			continue
		}
		remote, err := s.gw.OrderStatus(ctx, r.ID, pair)
		if err != nil {
			s.logger.Warn("order status query failed",
				zap.String("order_id", r.ID),
				zap.String("pair", pair),
				zap.Error(err))
			continue
		}
		reason, ok := closeReasonFor(remote.State)
		if !ok {
			continue
		}
		if err := r.Close(reason); err != nil {
			return nil, err
		}
		if err := s.repo.Persist(ctx, r); err != nil {
			return nil, fmt.Errorf("%w: persist refreshed order %s: %v", ErrStore, r.ID, err)
		}
		s.logger.Info("order closed by status sync",
			zap.String("order_id", r.ID),
			zap.String("pair", pair),
			zap.String("purpose", string(r.Purpose)),
			zap.String("reason", string(reason)))
	}
	return records, nil
}

func closeReasonFor(st RemoteState) (CloseReason, bool) {
	switch st {
	case RemoteFilled:
		return ReasonExecuted, true
	case RemoteCancelled:
		return ReasonCancelled, true
	case RemoteNotFound:
		return ReasonNotFound, true
	default:
		return "", false
	}
}
