package limits

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func account(cash float64, positions ...model.Position) model.Account {
	a := model.Account{ID: "acc1", CashBalance: d(cash), InitialCash: d(cash), Positions: map[string]model.Position{}}
	for _, p := range positions {
		a.Positions[p.Symbol] = p
	}
	return a
}

func TestCheckQuantity_WithinLimits(t *testing.T) {
	limiter := NewPositionLimiter(1000, 10000, decimal.Zero)

	if err := limiter.CheckQuantity(3000); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckQuantity_NotWholeLot(t *testing.T) {
	limiter := NewPositionLimiter(1000, 0, decimal.Zero)

	err := limiter.CheckQuantity(1500)
	if !errors.Is(err, ErrNotWholeLot) {
		t.Errorf("expected ErrNotWholeLot, got %v", err)
	}
}

func TestCheckQuantity_Exceeded(t *testing.T) {
	limiter := NewPositionLimiter(1, 1000, decimal.Zero)

	err := limiter.CheckQuantity(1001)
	if !errors.Is(err, ErrQuantityExceeded) {
		t.Errorf("expected ErrQuantityExceeded, got %v", err)
	}
}

func TestCheckQuantity_ZeroLotSizeMeansSingleShares(t *testing.T) {
	limiter := NewPositionLimiter(0, 0, decimal.Zero)

	if err := limiter.CheckQuantity(7); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckAllocation_Disabled(t *testing.T) {
	limiter := NewPositionLimiter(1, 0, decimal.Zero)

	if err := limiter.CheckAllocation("2330", d(900000), account(1000000)); err != nil {
		t.Errorf("zero limit should disable the check, got %v", err)
	}
}

func TestCheckAllocation_Exceeded(t *testing.T) {
	limiter := NewPositionLimiter(1, 0, d(30))

	// Existing 200,000 in 2330 + 150,000 new = 35% of 1,000,000.
	acct := account(800000, model.Position{Symbol: "2330", Quantity: 200, CurrentPrice: d(1000)})
	err := limiter.CheckAllocation("2330", d(150000), acct)
	if !errors.Is(err, ErrAllocationExceeded) {
		t.Errorf("expected ErrAllocationExceeded, got %v", err)
	}
}

func TestCheckAllocation_OtherSymbolsIgnored(t *testing.T) {
	limiter := NewPositionLimiter(1, 0, d(30))

	// 2317 holdings do not count towards 2330: 250,000 / 1,000,000 = 25%.
	acct := account(700000, model.Position{Symbol: "2317", Quantity: 1000, CurrentPrice: d(300)})
	if err := limiter.CheckAllocation("2330", d(250000), acct); err != nil {
		t.Errorf("other symbols should be ignored, got %v", err)
	}
}
