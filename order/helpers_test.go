package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

const (
	testExchange = "p2pb2b"
	testPair     = "ADM/USDT"
)

// fakeGateway 模拟交易所：撤单成功或不存在时订单从活跃列表移除。
type fakeGateway struct {
	mu          sync.Mutex
	open        []OpenOrder
	scripts     map[string][]CancelOutcome
	fallback    CancelOutcome
	cancelErr   error
	listErr     error
	cancelCalls []string
	listCalls   int
	statuses    map[string]RemoteStatus
	statusErr   error
	placeErr    error
	placed      []PlaceRequest
	nextID      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		scripts:  make(map[string][]CancelOutcome),
		statuses: make(map[string]RemoteStatus),
		fallback: Cancelled,
	}
}

// willReturn 为某个订单预设撤单结果，最后一个结果会一直重复。
func (g *fakeGateway) willReturn(id string, outcomes ...CancelOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[id] = outcomes
}

func (g *fakeGateway) addOpen(id string, side Side, price, amount string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = append(g.open, OpenOrder{
		ID:     id,
		Side:   side,
		Pair:   testPair,
		Price:  decimal.RequireFromString(price),
		Amount: decimal.RequireFromString(amount),
		Status: "open",
	})
}

func (g *fakeGateway) Cancel(_ context.Context, id string, _ Side, _ string) (CancelOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelCalls = append(g.cancelCalls, id)
	if g.cancelErr != nil {
		return CancelTransient, g.cancelErr
	}
	out := g.fallback
	if s := g.scripts[id]; len(s) > 0 {
		out = s[0]
		if len(s) > 1 {
			g.scripts[id] = s[1:]
		}
	}
	if out != CancelTransient {
		for i, o := range g.open {
			if o.ID == id {
				g.open = append(g.open[:i], g.open[i+1:]...)
				break
			}
		}
	}
	return out, nil
}

func (g *fakeGateway) ListOpenOrders(_ context.Context, pair string, side Side) ([]OpenOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	res := make([]OpenOrder, 0, len(g.open))
	for _, o := range g.open {
		if o.Pair != pair {
			continue
		}
		if side != "" && o.Side != side {
			continue
		}
		res = append(res, o)
	}
	return res, nil
}

func (g *fakeGateway) Place(_ context.Context, req PlaceRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeErr != nil {
		return "", g.placeErr
	}
	g.nextID++
	id := fmt.Sprintf("ex-%d", g.nextID)
	g.placed = append(g.placed, req)
	g.open = append(g.open, OpenOrder{ID: id, Side: req.Side, Pair: req.Pair, Price: req.Price, Amount: req.Amount})
	return id, nil
}

func (g *fakeGateway) OrderStatus(_ context.Context, id, _ string) (RemoteStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return RemoteStatus{}, g.statusErr
	}
	if st, ok := g.statuses[id]; ok {
		return st, nil
	}
	return RemoteStatus{State: RemoteOpen}, nil
}

func (g *fakeGateway) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancelCalls...)
}

// flakyRepo 在内存存储外包一层可注入的失败。
type flakyRepo struct {
	*MemoryRepository
	findErr         error
	persistErr      error
	persistFailFrom int // 第几次 Persist 开始失败，0 表示不失败
	persists        int
}

func (r *flakyRepo) Find(ctx context.Context, f Filter) ([]*Record, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.MemoryRepository.Find(ctx, f)
}

func (r *flakyRepo) Persist(ctx context.Context, rec *Record) error {
	r.persists++
	if r.persistErr != nil && r.persists >= r.persistFailFrom {
		return r.persistErr
	}
	return r.MemoryRepository.Persist(ctx, rec)
}

var errDiskFull = errors.New("disk full")

func newRecord(id string, purpose Purpose, side Side, base, quote string) *Record {
	base, quote = orZero(base), orZero(quote)
	b := decimal.RequireFromString(base)
	q := decimal.RequireFromString(quote)
	price := decimal.Zero
	if b.IsPositive() && q.IsPositive() {
		price = q.Div(b)
	}
	return &Record{
		ID:          id,
		Exchange:    testExchange,
		Pair:        testPair,
		Side:        side,
		Price:       price,
		BaseAmount:  b,
		QuoteAmount: q,
		Purpose:     purpose,
	}
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func seed(t *testing.T, repo Repository, records ...*Record) {
	t.Helper()
	for _, r := range records {
		if err := repo.Persist(context.Background(), r); err != nil {
			t.Fatalf("seed %s: %v", r.ID, err)
		}
	}
}

func newTestCollector(t *testing.T, repo Repository, gw Gateway, syncer Syncer) *Collector {
	t.Helper()
	c, err := NewCollector(repo, gw, syncer, CollectorConfig{
		Exchange:    testExchange,
		DefaultPair: testPair,
	}, nil)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	return c
}

func mustGet(t *testing.T, repo *MemoryRepository, id string) *Record {
	t.Helper()
	r, ok := repo.Get(testExchange, testPair, id)
	if !ok {
		t.Fatalf("record %s not found", id)
	}
	return r
}
