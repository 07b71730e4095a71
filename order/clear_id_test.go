package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearByIDTracked(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo, newRecord("r1", PurposeManual, SideSell, "40", ""))
	gw := newFakeGateway()
	c := newTestCollector(t, repo, gw, nil)

	rep, err := c.ClearByID(context.Background(), "r1", "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ClearedSuccess)
	assert.True(t, rep.SellNotional.Equal(d("40")))
	assert.True(t, mustGet(t, repo, "r1").IsCancelled)
	assert.Equal(t, "Cancelled tracked order r1 on ADM/USDT.", rep.LogMessage)
}

func TestClearByIDTransientLeavesRecord(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: NewMemoryRepository()}
	seed(t, repo.MemoryRepository, newRecord("r1", PurposeManual, SideSell, "40", ""))
	gw := newFakeGateway()
	gw.willReturn("r1", CancelTransient)
	c := newTestCollector(t, repo, gw, nil)

	rep, err := c.ClearByID(context.Background(), "r1", "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, rep.ClearedAll)
	assert.Equal(t, 0, repo.persists)
	assert.False(t, mustGet(t, repo.MemoryRepository, "r1").IsProcessed)
}

func TestClearByIDUntracked(t *testing.T) {
	repo := NewMemoryRepository()
	gw := newFakeGateway()
	gw.willReturn("x9", CancelNotFound)
	c := newTestCollector(t, repo, gw, nil)
	ctx := context.Background()

	_, err := c.ClearByID(ctx, "x9", "", "")
	assert.True(t, errors.Is(err, ErrInvalidRequest), "side is required for untracked orders")
	assert.Empty(t, gw.calls())

	rep, err := c.ClearByID(ctx, "x9", "", SideBuy)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ClearedOnlyMarked)
	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, "Order x9 on ADM/USDT no longer exists.", rep.LogMessage)
}

func TestClearByIDEmpty(t *testing.T) {
	c := newTestCollector(t, NewMemoryRepository(), newFakeGateway(), nil)
	_, err := c.ClearByID(context.Background(), "  ", "", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
