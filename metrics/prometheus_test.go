package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCancel(t *testing.T) {
	c := CancelOutcomes.WithLabelValues("local", "cancelled")
	before := testutil.ToFloat64(c)

	RecordCancel("local", "cancelled")
	RecordCancel("local", "cancelled")

	if got := testutil.ToFloat64(c) - before; got != 2 {
		t.Errorf("Expected 2 cancel outcomes, got %f", got)
	}
}

func TestRecordReport(t *testing.T) {
	ok := Reports.WithLabelValues("clear_all", "success")
	failed := Reports.WithLabelValues("clear_all", "failure")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordReport("clear_all", false, 1)
	RecordReport("clear_all", true, 3)

	if testutil.ToFloat64(ok)-okBefore != 1 {
		t.Errorf("Expected one successful report")
	}
	if testutil.ToFloat64(failed)-failedBefore != 1 {
		t.Errorf("Expected one failed report")
	}
}

func TestUnknownEstimateCanBeNegative(t *testing.T) {
	UpdateUnknownEstimate("ADM/USDT", -2)
	if got := testutil.ToFloat64(UnknownEstimate.WithLabelValues("ADM/USDT")); got != -2 {
		t.Errorf("Expected estimate -2, got %f", got)
	}
}

func TestUpdateOpenOrders(t *testing.T) {
	UpdateOpenOrders("ADM/USDT", "mm", 3, 1, 30.5, 200)

	if got := testutil.ToFloat64(OpenOrders.WithLabelValues("ADM/USDT", "mm", "buy")); got != 3 {
		t.Errorf("Expected 3 buy orders, got %f", got)
	}
	if got := testutil.ToFloat64(OpenOrders.WithLabelValues("ADM/USDT", "mm", "sell")); got != 1 {
		t.Errorf("Expected 1 sell order, got %f", got)
	}
	if got := testutil.ToFloat64(OpenNotional.WithLabelValues("ADM/USDT", "mm", "buy")); got != 30.5 {
		t.Errorf("Expected buy notional 30.5, got %f", got)
	}
	if got := testutil.ToFloat64(OpenNotional.WithLabelValues("ADM/USDT", "mm", "sell")); got != 200 {
		t.Errorf("Expected sell notional 200, got %f", got)
	}
}

func TestObserveGatewayCall(t *testing.T) {
	reqs := GatewayRequests.WithLabelValues("cancel")
	errs := GatewayErrors.WithLabelValues("cancel")
	reqBefore, errBefore := testutil.ToFloat64(reqs), testutil.ToFloat64(errs)

	ObserveGatewayCall("cancel", 0.05, nil)
	ObserveGatewayCall("cancel", 0.2, errors.New("timeout"))

	if testutil.ToFloat64(reqs)-reqBefore != 2 {
		t.Errorf("Expected 2 gateway requests")
	}
	if testutil.ToFloat64(errs)-errBefore != 1 {
		t.Errorf("Expected 1 gateway error")
	}
}

func TestRecordSweep(t *testing.T) {
	c := Sweeps.WithLabelValues("ADM/BTC", "failure")
	before := testutil.ToFloat64(c)
	RecordSweep("ADM/BTC", true)
	if testutil.ToFloat64(c)-before != 1 {
		t.Errorf("Expected one failed sweep")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordCancel("unknown", "not_found")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "collector_cancel_outcomes_total") {
		t.Errorf("Expected cancel outcomes in scrape output")
	}
}
