package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearAllCombinesReports(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo,
		newRecord("l1", PurposeMarketMaking, SideBuy, "", "10"),
		newRecord("l2", PurposeTradeBot, SideSell, "20", ""),
	)
	gw := newFakeGateway()
	gw.addOpen("l1", SideBuy, "0.1", "100")
	gw.addOpen("l2", SideSell, "0.1", "20")
	gw.addOpen("u1", SideBuy, "0.1", "10")
	gw.addOpen("u2", SideSell, "0.1", "10")
	gw.willReturn("u2", CancelTransient)
	c := newTestCollector(t, repo, gw, nil)

	rep, err := c.ClearAll(context.Background(), AllRequest{Pair: testPair})
	require.NoError(t, err)
	require.NotNil(t, rep.Local)
	require.NotNil(t, rep.Unknown)

	assert.Equal(t, 2, rep.Local.TotalOrders)
	assert.Equal(t, 2, rep.Local.ClearedAll)
	// 本地撤单后活跃列表只剩 u1、u2，已知订单为 0
	assert.Equal(t, 2, rep.Unknown.TotalOrders)
	assert.Equal(t, 1, rep.Unknown.ClearedAll)

	assert.False(t, rep.Failed)
	assert.Equal(t, 4, rep.TotalOrders)
	assert.Equal(t, 3, rep.ClearedAll)
	assert.Equal(t, []string{"l1", "l2", "u1", "u2"}, gw.calls())
	assert.Contains(t, rep.LogMessage, "Cancelled 3 of 4 orders")
}

func TestClearAllLocalFailureSkipsUnknown(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: NewMemoryRepository(), findErr: errDiskFull}
	gw := newFakeGateway()
	gw.addOpen("u1", SideBuy, "0.1", "10")
	c := newTestCollector(t, repo, gw, nil)

	rep, err := c.ClearAll(context.Background(), AllRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStore))
	require.NotNil(t, rep)
	assert.True(t, rep.Failed)
	assert.Equal(t, 0, gw.listCalls)
	assert.Empty(t, gw.calls())
}

func TestClearAllUnknownListFailure(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo, newRecord("l1", PurposeMarketMaking, SideBuy, "", "10"))
	gw := newFakeGateway()
	gw.listErr = errors.New("timeout")
	c := newTestCollector(t, repo, gw, nil)

	rep, err := c.ClearAll(context.Background(), AllRequest{})
	require.NoError(t, err)
	assert.True(t, rep.Failed)
	assert.Equal(t, 1, rep.ClearedAll, "local cancellations are still reported")
	assert.True(t, mustGet(t, repo, "l1").IsCancelled)
	assert.Contains(t, rep.LogMessage, "Unable to get open orders")
}

func TestClearAllNegativeEstimateFails(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo, newRecord("l1", PurposeMarketMaking, SideBuy, "", "10"))
	gw := newFakeGateway()
	// l1 撤单暂时失败，仍是已知订单，但交易所活跃列表为空
	gw.willReturn("l1", CancelTransient)
	c := newTestCollector(t, repo, gw, nil)

	rep, err := c.ClearAll(context.Background(), AllRequest{})
	require.NoError(t, err)
	require.NotNil(t, rep.Unknown)
	assert.Equal(t, -1, rep.Unknown.TotalOrders)
	assert.True(t, rep.Failed)
	assert.Equal(t, 0, rep.ClearedAll)
}

func TestClearAllUnknownStoreFailure(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: NewMemoryRepository()}
	seed(t, repo.MemoryRepository, newRecord("l1", PurposeMarketMaking, SideBuy, "", "10"))
	gw := newFakeGateway()
	c := newTestCollector(t, repo, gw, &failingSyncer{})

	rep, err := c.ClearAll(context.Background(), AllRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStore))
	require.NotNil(t, rep)
	assert.True(t, rep.Failed)
	assert.Equal(t, 1, rep.ClearedAll)
}

func TestClearAllNoPair(t *testing.T) {
	c, err := NewCollector(NewMemoryRepository(), newFakeGateway(), nil, CollectorConfig{Exchange: testExchange}, nil)
	require.NoError(t, err)
	_, err = c.ClearAll(context.Background(), AllRequest{})
	assert.ErrorIs(t, err, ErrNoPair)
}

type failingSyncer struct{}

func (failingSyncer) Refresh(context.Context, []*Record, string) ([]*Record, error) {
	return nil, errDiskFull
}
