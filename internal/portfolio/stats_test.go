package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

func gain(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestStatistics_WinsLossesAndFactor(t *testing.T) {
	records := []model.TradeRecord{
		{Side: model.SideBuy, Notional: d("1000"), Fee: d("20")},
		{Side: model.SideSell, Notional: d("1200"), Fee: d("20"), Tax: d("3"), RealizedGainLoss: gain("300")},
		{Side: model.SideSell, Notional: d("500"), Fee: d("20"), Tax: d("1"), RealizedGainLoss: gain("-100")},
		{Side: model.SideSell, Notional: d("800"), Fee: d("20"), Tax: d("2"), RealizedGainLoss: gain("100")},
	}

	s := Statistics(records)
	if s.TotalTrades != 4 {
		t.Errorf("expected 4 trades, got %d", s.TotalTrades)
	}
	if !s.TotalVolume.Equal(d("3500")) {
		t.Errorf("expected volume 3500, got %s", s.TotalVolume)
	}
	if !s.TotalFees.Equal(d("86")) {
		t.Errorf("expected fees 86, got %s", s.TotalFees)
	}
	if s.WinningTrades != 2 || s.LosingTrades != 1 {
		t.Errorf("expected 2 wins / 1 loss, got %d / %d", s.WinningTrades, s.LosingTrades)
	}
	if !s.WinRate.Equal(d("0.6667")) {
		t.Errorf("expected win rate 0.6667, got %s", s.WinRate)
	}
	if !s.AverageProfit.Equal(d("200")) {
		t.Errorf("expected average profit 200, got %s", s.AverageProfit)
	}
	if !s.AverageLoss.Equal(d("100")) {
		t.Errorf("expected average loss 100, got %s", s.AverageLoss)
	}
	if s.ProfitFactor == nil || !s.ProfitFactor.Equal(d("4")) {
		t.Errorf("expected profit factor 4, got %v", s.ProfitFactor)
	}
}

func TestStatistics_NoLossesLeavesFactorUnset(t *testing.T) {
	s := Statistics([]model.TradeRecord{
		{Side: model.SideSell, Notional: d("100"), RealizedGainLoss: gain("10")},
	})
	if s.ProfitFactor != nil {
		t.Errorf("expected nil profit factor, got %s", s.ProfitFactor)
	}
	if !s.WinRate.Equal(d("1")) {
		t.Errorf("expected win rate 1, got %s", s.WinRate)
	}
}

func TestStatistics_Empty(t *testing.T) {
	s := Statistics(nil)
	if s.TotalTrades != 0 || !s.TotalVolume.IsZero() || !s.WinRate.IsZero() {
		t.Errorf("expected zero stats, got %+v", s)
	}
}
