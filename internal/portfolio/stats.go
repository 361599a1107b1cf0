package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

// Stats summarizes an account's trade history.
type Stats struct {
	TotalTrades   int             `json:"total_trades"`
	TotalVolume   decimal.Decimal `json:"total_volume"` // Σ notional
	TotalFees     decimal.Decimal `json:"total_fees"`   // Σ fee + tax
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       decimal.Decimal `json:"win_rate"` // winning / closed sells
	AverageProfit decimal.Decimal `json:"average_profit"`
	AverageLoss   decimal.Decimal `json:"average_loss"` // magnitude
	// ProfitFactor is gross profit / gross loss; nil when there are no losses.
	ProfitFactor *decimal.Decimal `json:"profit_factor,omitempty"`
}

// Statistics computes Stats over records. Only sells with a realized
// gain/loss count towards win/loss figures.
func Statistics(records []model.TradeRecord) Stats {
	s := Stats{
		TotalTrades:   len(records),
		TotalVolume:   decimal.Zero,
		TotalFees:     decimal.Zero,
		WinRate:       decimal.Zero,
		AverageProfit: decimal.Zero,
		AverageLoss:   decimal.Zero,
	}

	profit := decimal.Zero
	loss := decimal.Zero
	closed := 0
	for _, r := range records {
		s.TotalVolume = s.TotalVolume.Add(r.Notional)
		s.TotalFees = s.TotalFees.Add(r.Fee).Add(r.Tax)

		if r.Side != model.SideSell || r.RealizedGainLoss == nil {
			continue
		}
		closed++
		g := *r.RealizedGainLoss
		switch {
		case g.IsPositive():
			s.WinningTrades++
			profit = profit.Add(g)
		case g.IsNegative():
			s.LosingTrades++
			loss = loss.Add(g.Abs())
		}
	}

	if closed > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.WinningTrades)).Div(decimal.NewFromInt(int64(closed))).Round(4)
	}
	if s.WinningTrades > 0 {
		s.AverageProfit = profit.Div(decimal.NewFromInt(int64(s.WinningTrades))).Round(2)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = loss.Div(decimal.NewFromInt(int64(s.LosingTrades))).Round(2)
		pf := profit.Div(loss).Round(4)
		s.ProfitFactor = &pf
	}
	return s
}
