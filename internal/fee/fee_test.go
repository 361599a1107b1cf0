package fee

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute_BuyFeeFlooredToWholeUnit(t *testing.T) {
	s := DefaultSchedule()
	fb := s.Compute(d("100000"), model.SideBuy)

	if !fb.Fee.Equal(d("142")) {
		t.Errorf("expected fee 142, got %s", fb.Fee)
	}
	if !fb.Tax.IsZero() {
		t.Errorf("buy tax should be 0, got %s", fb.Tax)
	}
	if !fb.NetAmount.Equal(d("100142")) {
		t.Errorf("expected net 100142, got %s", fb.NetAmount)
	}
}

func TestCompute_SellFeeAndTax(t *testing.T) {
	s := DefaultSchedule()
	fb := s.Compute(d("100000"), model.SideSell)

	if !fb.Fee.Equal(d("142")) {
		t.Errorf("expected fee 142, got %s", fb.Fee)
	}
	if !fb.Tax.Equal(d("300")) {
		t.Errorf("expected tax 300, got %s", fb.Tax)
	}
	if !fb.TotalCost().Equal(d("442")) {
		t.Errorf("expected total deduction 442, got %s", fb.TotalCost())
	}
	if !fb.NetAmount.Equal(d("99558")) {
		t.Errorf("expected net 99558, got %s", fb.NetAmount)
	}
}

func TestCompute_CentScale(t *testing.T) {
	s := DefaultSchedule()
	s.Scale = 2
	s.MinimumFee = decimal.Zero

	fb := s.Compute(d("100000"), model.SideBuy)
	if !fb.Fee.Equal(d("142.50")) {
		t.Errorf("expected fee 142.50 at cent scale, got %s", fb.Fee)
	}

	// 1234.56 * 0.001425 = 1.759248 -> 1.75
	fb = s.Compute(d("1234.56"), model.SideBuy)
	if !fb.Fee.Equal(d("1.75")) {
		t.Errorf("expected fee floored to 1.75, got %s", fb.Fee)
	}
}

func TestCompute_MinimumFeeApplies(t *testing.T) {
	s := DefaultSchedule()
	fb := s.Compute(d("1000"), model.SideSell)

	if !fb.Fee.Equal(d("20")) {
		t.Errorf("expected minimum fee 20, got %s", fb.Fee)
	}
	if !fb.Tax.Equal(d("3")) {
		t.Errorf("expected tax 3, got %s", fb.Tax)
	}
	if !fb.NetAmount.Equal(d("977")) {
		t.Errorf("expected net 977, got %s", fb.NetAmount)
	}
}

func TestCompute_MinimumTaxApplies(t *testing.T) {
	s := DefaultSchedule()
	s.MinimumTax = decimal.NewFromInt(1)

	// 100 * 0.003 = 0.3 -> floor 0 -> minimum 1
	fb := s.Compute(d("100"), model.SideSell)
	if !fb.Tax.Equal(d("1")) {
		t.Errorf("expected minimum tax 1, got %s", fb.Tax)
	}
	fb = s.Compute(d("100"), model.SideBuy)
	if !fb.Tax.IsZero() {
		t.Errorf("minimum tax must not apply to buys, got %s", fb.Tax)
	}
}

func TestCompute_ZeroNotionalChargesNothing(t *testing.T) {
	s := DefaultSchedule()
	fb := s.Compute(decimal.Zero, model.SideSell)
	if !fb.Fee.IsZero() || !fb.Tax.IsZero() || !fb.NetAmount.IsZero() {
		t.Errorf("expected all zero, got %+v", fb)
	}
}

func TestForTrade_UsesQuantityTimesPrice(t *testing.T) {
	s := DefaultSchedule()
	fb := s.ForTrade(1000, d("100"), model.SideBuy)
	if !fb.Notional.Equal(d("100000")) {
		t.Errorf("expected notional 100000, got %s", fb.Notional)
	}
	if !fb.Fee.Equal(d("142")) {
		t.Errorf("expected fee 142, got %s", fb.Fee)
	}
}
