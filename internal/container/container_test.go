package container

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-maker-go/config"
	"market-maker-go/infrastructure/logger"
	"market-maker-go/order"
)

func testConfig(baseURL string) config.AppConfig {
	log := logger.DefaultConfig()
	log.Outputs = nil
	return config.AppConfig{
		Env:         "test",
		Exchange:    "p2pb2b",
		DefaultPair: "ADM/USDT",
		Gateway:     config.GatewayConfig{BaseURL: baseURL, APIKey: "k", APISecret: "s"},
		Store:       config.StoreConfig{InMemory: true},
		Collector:   config.CollectorConfig{MaxTries: 4, SweepIntervalSec: 60},
		Log:         log,
		Symbols: map[string]config.SymbolConfig{
			"ADM/USDT": {TickSize: 0.0001, StepSize: 1},
		},
	}
}

// exchangeStub 一个只有一个活跃订单、撤单总是成功的交易所
func exchangeStub(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v2/orders":
			_, _ = io.WriteString(w, `{"success":true,"result":[{"orderId":"77","side":"buy","price":"0.02","amount":"50"}]}`)
		case "/api/v2/order/new":
			_, _ = io.WriteString(w, `{"success":true,"result":{"orderId":"88"}}`)
		default:
			_, _ = io.WriteString(w, `{"success":true,"result":{}}`)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestBuildAndClear(t *testing.T) {
	ts := exchangeStub(t)
	c := NewFromConfig(testConfig(ts.URL))
	require.NoError(t, c.Build())
	t.Cleanup(func() { _ = c.Stop() })

	ctx := context.Background()
	rec, err := c.Placer().Place(ctx, order.PlaceRequest{
		Pair: "ADM/USDT", Side: order.SideSell, Price: decimal.RequireFromString("0.03"), Amount: decimal.NewFromInt(10),
	}, order.PurposeOrderBook)
	require.NoError(t, err)
	assert.Equal(t, "88", rec.ID)

	rep, err := c.Collector().ClearAll(ctx, order.AllRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Local.ClearedSuccess)
	// 交易所返回 77（未知）；88 已在本地撤销，所以估计值为 1-0
	assert.Equal(t, 1, rep.Unknown.ClearedSuccess)
	assert.False(t, rep.Failed)
}

func TestPlacerUsesSymbolConstraints(t *testing.T) {
	ts := exchangeStub(t)
	c := NewFromConfig(testConfig(ts.URL))
	require.NoError(t, c.Build())
	t.Cleanup(func() { _ = c.Stop() })

	_, err := c.Placer().Place(context.Background(), order.PlaceRequest{
		Pair: "ADM/USDT", Side: order.SideBuy, Price: decimal.RequireFromString("0.03"), Amount: decimal.RequireFromString("1.5"),
	}, order.PurposeManual)
	assert.Error(t, err, "amount is not a multiple of stepSize")
}

func TestApplyConfig(t *testing.T) {
	ts := exchangeStub(t)
	c := NewFromConfig(testConfig(ts.URL), WithSweeper())
	require.NoError(t, c.Build())
	t.Cleanup(func() { _ = c.Stop() })
	assert.Equal(t, 4, c.Collector().Config().MaxTries)

	next := c.Config()
	next.Collector.MaxTries = 9
	next.Collector.SweepIntervalSec = 5
	next.Collector.SweepMode = "all"
	c.ApplyConfig(next)

	assert.Equal(t, 9, c.Collector().Config().MaxTries)
	assert.Equal(t, 5*time.Second, c.Sweeper().Interval())
	assert.Equal(t, 9, c.Config().Collector.MaxTries)
}

func TestStartStopWithSweeper(t *testing.T) {
	ts := exchangeStub(t)
	c := NewFromConfig(testConfig(ts.URL), WithSweeper())
	require.NoError(t, c.Build())

	require.NoError(t, c.Start(context.Background()))
	assert.NoError(t, c.HealthCheck())
	assert.NoError(t, c.Stop())
}

func TestWatchConfigRequiresPath(t *testing.T) {
	ts := exchangeStub(t)
	c := NewFromConfig(testConfig(ts.URL))
	require.NoError(t, c.Build())
	t.Cleanup(func() { _ = c.Stop() })
	assert.Error(t, c.WatchConfig(context.Background()))
}

type fakeComponent struct {
	startErr error
	started  bool
	stopped  bool
}

func (f *fakeComponent) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeComponent) Stop() error {
	f.stopped = true
	return nil
}

func (f *fakeComponent) Health() error {
	if !f.started {
		return errors.New("not started")
	}
	return nil
}

func TestLifecycleRollback(t *testing.T) {
	m := NewLifecycleManager(nil)
	first := &fakeComponent{}
	broken := &fakeComponent{startErr: errors.New("port in use")}
	m.Register("first", first)
	m.Register("broken", broken)

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start broken")
	assert.True(t, first.stopped, "started components are rolled back")
	assert.False(t, broken.stopped)
	assert.Error(t, m.CheckHealth())
}

func TestMetricsServer(t *testing.T) {
	ts := exchangeStub(t)
	cfg := testConfig(ts.URL)
	cfg.Metrics = config.MetricsConfig{Enabled: true, Addr: "127.0.0.1:0"}
	c := NewFromConfig(cfg)
	require.NoError(t, c.Build())
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop() })

	require.NotEmpty(t, c.MetricsAddr())
	resp, err := http.Get("http://" + c.MetricsAddr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetricsPortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	ts := exchangeStub(t)
	cfg := testConfig(ts.URL)
	cfg.Metrics = config.MetricsConfig{Enabled: true, Addr: busy.Addr().String()}
	c := NewFromConfig(cfg, WithSweeper())
	require.NoError(t, c.Build())
	t.Cleanup(func() { _ = c.Stop() })

	assert.Error(t, c.Start(context.Background()))
	assert.Error(t, c.Sweeper().Health(), "sweeper registered after metrics is never started")
}

func TestSweepFailureRaisesAlert(t *testing.T) {
	exchange := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(exchange.Close)

	var mu sync.Mutex
	var received []map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
	}))
	t.Cleanup(hook.Close)

	cfg := testConfig(exchange.URL)
	cfg.Alert = config.AlertConfig{Enabled: true, WebhookURL: hook.URL, ThrottleSec: 3600}
	c := NewFromConfig(cfg)
	require.NoError(t, c.Build())
	t.Cleanup(func() { _ = c.Stop() })

	ctx := context.Background()
	require.NoError(t, c.Sweeper().SweepOnce(ctx))
	require.NoError(t, c.Sweeper().SweepOnce(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1, "repeated failures are throttled")
	assert.Equal(t, "WARNING", received[0]["level"])
	assert.Contains(t, received[0]["message"], "ADM/USDT")
}
