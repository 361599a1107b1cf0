package advisor

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/fee"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestAdvisor() *Advisor {
	return New(fee.DefaultSchedule(), d("100"))
}

func TestAdvise_ZeroRequestedIsRejected(t *testing.T) {
	a := newTestAdvisor().Advise(0, 10, d("100"))
	if a.Kind != Rejected {
		t.Fatalf("expected Rejected, got %s", a.Kind)
	}
	if a.Reason == "" {
		t.Error("rejected advice should carry a reason")
	}
}

func TestAdvise_NothingAvailableIsInsufficientStock(t *testing.T) {
	a := newTestAdvisor().Advise(10, 0, d("100"))
	if a.Kind != InsufficientStock {
		t.Fatalf("expected InsufficientStock, got %s", a.Kind)
	}
	if a.Requested != 10 || a.Available != 0 {
		t.Errorf("unexpected requested/available %d/%d", a.Requested, a.Available)
	}
}

func TestAdvise_NothingAvailableWinsOverSuggestion(t *testing.T) {
	a := newTestAdvisor().Advise(15, 0, d("100"))
	if a.Kind != InsufficientStock {
		t.Fatalf("expected InsufficientStock, got %s", a.Kind)
	}
}

func TestAdvise_ExactHoldingIsApproved(t *testing.T) {
	a := newTestAdvisor().Advise(10, 10, d("100"))
	if a.Kind != Approved {
		t.Fatalf("expected Approved, got %s", a.Kind)
	}
	if a.Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", a.Quantity)
	}
	// 1000 - 20 (minimum fee) - 3 tax
	if !a.NetProceeds.Equal(d("977")) {
		t.Errorf("expected net proceeds 977, got %s", a.NetProceeds)
	}
	if !a.Executable() {
		t.Error("approved advice should be executable")
	}
}

func TestAdvise_ExceedingHoldingSuggestsAvailable(t *testing.T) {
	a := newTestAdvisor().Advise(15, 10, d("100"))
	if a.Kind != SuggestAlternative {
		t.Fatalf("expected SuggestAlternative, got %s", a.Kind)
	}
	if a.Requested != 15 || a.Available != 10 || a.Quantity != 10 {
		t.Errorf("expected (15, 10, 10), got (%d, %d, %d)", a.Requested, a.Available, a.Quantity)
	}
	if !a.NetProceeds.Equal(d("977")) {
		t.Errorf("expected suggested proceeds 977, got %s", a.NetProceeds)
	}
	if a.Executable() {
		t.Error("a suggestion must not be executable as requested")
	}
}

func TestAdvise_SmallSaleNotRecommended(t *testing.T) {
	// 2 * 40 = 80, minus the 20 minimum fee = 60 < 100
	a := newTestAdvisor().Advise(2, 10, d("40"))
	if a.Kind != NotRecommended {
		t.Fatalf("expected NotRecommended, got %s (net %s)", a.Kind, a.NetProceeds)
	}
	if !a.Executable() {
		t.Error("not-recommended advice is still executable")
	}
}

func TestAdvise_FeesExceedProceedsRejected(t *testing.T) {
	// 1 * 10 = 10, fee 20 → net -10
	a := newTestAdvisor().Advise(1, 10, d("10"))
	if a.Kind != Rejected {
		t.Fatalf("expected Rejected, got %s", a.Kind)
	}
	if a.NetProceeds.IsPositive() {
		t.Errorf("expected non-positive proceeds, got %s", a.NetProceeds)
	}
}

func TestAdvise_NonPositivePriceRejected(t *testing.T) {
	a := newTestAdvisor().Advise(5, 10, decimal.Zero)
	if a.Kind != Rejected {
		t.Fatalf("expected Rejected, got %s", a.Kind)
	}
}

func TestAdvice_MessageMentionsSuggestion(t *testing.T) {
	a := newTestAdvisor().Advise(15, 10, d("100"))
	if a.Message() == "" {
		t.Fatal("expected a message")
	}
}
