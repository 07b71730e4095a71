package order

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseSide(t *testing.T) {
	cases := map[string]Side{"": "", "BUY": SideBuy, " sell ": SideSell}
	for in, want := range cases {
		got, err := ParseSide(in)
		if err != nil || got != want {
			t.Fatalf("ParseSide(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSide("long"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestPurposeValid(t *testing.T) {
	for _, p := range KnownPurposes {
		if !p.Valid() {
			t.Fatalf("%s should be valid", p)
		}
	}
	if PurposeAll.Valid() {
		t.Fatalf("all is a filter sentinel, not a record purpose")
	}
}

func TestRecordCloseSetsFlags(t *testing.T) {
	for reason := range closeFlags {
		r := newRecord("r", PurposeMarketMaking, SideBuy, "1", "1")
		if err := r.Close(reason); err != nil {
			t.Fatalf("close %s: %v", reason, err)
		}
		if !r.IsClosed || !r.IsProcessed || !r.Terminal() {
			t.Fatalf("%s: record not terminal", reason)
		}
		if got := CloseReasonOf(r); got != reason {
			t.Fatalf("CloseReasonOf = %s, want %s", got, reason)
		}
		if err := r.Validate(); err != nil {
			t.Fatalf("%s: %v", reason, err)
		}
	}
	r := newRecord("r", PurposeMarketMaking, SideBuy, "1", "1")
	if err := r.Close("bogus"); err == nil {
		t.Fatalf("expected unknown reason error")
	}
	if r.Terminal() {
		t.Fatalf("failed close must not change the record")
	}
}

func TestRecordValidate(t *testing.T) {
	bad := newRecord("r", PurposeMarketMaking, SideBuy, "1", "1")
	bad.IsCancelled = true
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("cancelled but open record must be rejected, got %v", err)
	}
	noPurpose := newRecord("r", "", SideBuy, "1", "1")
	if err := noPurpose.Validate(); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected invalid record, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := NewMemoryRepository().Persist(ctx, bad); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("repository must refuse invalid records, got %v", err)
	}
}

func TestRecordNotional(t *testing.T) {
	buy := newRecord("b", PurposeMarketMaking, SideBuy, "100", "12.5")
	sell := newRecord("s", PurposeMarketMaking, SideSell, "100", "12.5")
	if !buy.Notional().Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("buy notional = %s", buy.Notional())
	}
	if !sell.Notional().Equal(decimal.NewFromInt(100)) {
		t.Fatalf("sell notional = %s", sell.Notional())
	}
}

func TestRecordJSONKeepsFlags(t *testing.T) {
	r := newRecord("r", PurposeLiquidity, SideSell, "3.14", "")
	_ = r.Close(ReasonOutOfSpread)
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var back Record
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if !back.IsOutOfSpread || !back.IsClosed || back.Purpose != PurposeLiquidity {
		t.Fatalf("round trip lost state: %+v", back)
	}
	if !back.BaseAmount.Equal(r.BaseAmount) {
		t.Fatalf("amount %s != %s", back.BaseAmount, r.BaseAmount)
	}
}

func TestFilterMatches(t *testing.T) {
	r := newRecord("r", PurposeOrderBook, SideSell, "10", "5")
	f := Filter{Exchange: "P2PB2B", Pair: "adm/usdt", Purposes: Purposes(PurposeOrderBook)}
	if !f.Matches(r) {
		t.Fatalf("expected match")
	}
	f.Side = SideBuy
	if f.Matches(r) {
		t.Fatalf("side and purpose must both match")
	}
	f.Side = ""
	f.Account = "second"
	if f.Matches(r) {
		t.Fatalf("account must match exactly")
	}
	if (Filter{Purposes: PurposeFilter{}}).Matches(r) {
		t.Fatalf("zero purpose filter matches nothing")
	}
	_ = r.Close(ReasonCancelled)
	if (Filter{Purposes: AllPurposes()}).Matches(r) {
		t.Fatalf("terminal records are excluded by default")
	}
	if !(Filter{Purposes: AllPurposes(), IncludeProcessed: true}).Matches(r) {
		t.Fatalf("IncludeProcessed should return terminal records")
	}
}

func TestParsePurposes(t *testing.T) {
	f, err := ParsePurposes("mm, ob,mm")
	if err != nil {
		t.Fatal(err)
	}
	if f.IsAll() || !f.Contains(PurposeOrderBook) || f.Contains(PurposeTradeBot) {
		t.Fatalf("unexpected filter %s", f)
	}
	if f.String() != "mm, ob" {
		t.Fatalf("String() = %q", f.String())
	}
	all, _ := ParsePurposes("ALL")
	if !all.IsAll() {
		t.Fatalf("expected all")
	}
	if _, err := ParsePurposes("mm,xx"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestPriceMatchers(t *testing.T) {
	r := newRecord("r", PurposeMarketMaking, SideBuy, "100", "25") // 0.25
	if !PriceBetween(decimal.RequireFromString("0.25"), decimal.RequireFromString("0.3"))(r) {
		t.Fatalf("between is inclusive")
	}
	if PriceBelow(decimal.RequireFromString("0.25"))(r) || PriceAbove(decimal.RequireFromString("0.25"))(r) {
		t.Fatalf("above/below are strict")
	}
}

func TestCloseOnOutcome(t *testing.T) {
	cases := []struct {
		outcome  CancelOutcome
		closed   bool
		notFound bool
	}{
		{Cancelled, true, false},
		{CancelNotFound, true, true},
		{CancelTransient, false, false},
		{CancelOutcome(42), false, false},
	}
	for _, tc := range cases {
		r := newRecord("r", PurposeMarketMaking, SideBuy, "", "1")
		closed, err := closeOnOutcome(r, tc.outcome)
		if err != nil {
			t.Fatalf("%s: %v", tc.outcome, err)
		}
		if closed != tc.closed || r.Terminal() != tc.closed {
			t.Fatalf("%s: closed=%v terminal=%v, want %v", tc.outcome, closed, r.Terminal(), tc.closed)
		}
		if r.IsNotFound != tc.notFound || r.IsCancelled != (tc.closed && !tc.notFound) {
			t.Fatalf("%s: unexpected flags %+v", tc.outcome, r)
		}
	}
}
