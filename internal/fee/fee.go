// Package fee computes brokerage fees and securities transaction tax.
//
// Amounts are floored to the smallest currency unit (Scale fractional
// digits) independently, so repeated calculations never drift.
package fee

import (
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

var (
	// DefaultFeeRate is the broker fee rate (0.1425%).
	DefaultFeeRate = decimal.RequireFromString("0.001425")

	// DefaultTaxRate is the securities transaction tax rate on sells (0.3%).
	DefaultTaxRate = decimal.RequireFromString("0.003")

	// DefaultMinimumFee is the floor applied to any non-zero broker fee.
	DefaultMinimumFee = decimal.NewFromInt(20)
)

// Schedule holds the rates. The zero value charges nothing.
type Schedule struct {
	FeeRate    decimal.Decimal
	TaxRate    decimal.Decimal
	MinimumFee decimal.Decimal // applied when notional > 0
	MinimumTax decimal.Decimal // sells only, applied when notional > 0
	Scale      int32           // fractional digits of the minor unit; 0 for whole units
}

// DefaultSchedule returns the Taiwan-style schedule in whole currency units.
func DefaultSchedule() Schedule {
	return Schedule{
		FeeRate:    DefaultFeeRate,
		TaxRate:    DefaultTaxRate,
		MinimumFee: DefaultMinimumFee,
		Scale:      0,
	}
}

// Compute returns the fee breakdown for a notional amount on the given side.
// It never fails; non-positive notionals are the caller's concern.
func (s Schedule) Compute(notional decimal.Decimal, side model.Side) model.FeeBreakdown {
	fee := s.floor(notional.Mul(s.FeeRate))
	tax := decimal.Zero
	if notional.IsPositive() && fee.LessThan(s.MinimumFee) {
		fee = s.MinimumFee
	}

	switch side {
	case model.SideBuy:
		return model.FeeBreakdown{
			Notional:  notional,
			Fee:       fee,
			Tax:       tax,
			NetAmount: notional.Add(fee),
		}
	case model.SideSell:
		tax = s.floor(notional.Mul(s.TaxRate))
		if notional.IsPositive() && tax.LessThan(s.MinimumTax) {
			tax = s.MinimumTax
		}
		return model.FeeBreakdown{
			Notional:  notional,
			Fee:       fee,
			Tax:       tax,
			NetAmount: notional.Sub(fee).Sub(tax),
		}
	}
	panic("fee: unhandled side " + side.String())
}

// ForTrade computes the breakdown of quantity shares at price.
func (s Schedule) ForTrade(quantity int64, price decimal.Decimal, side model.Side) model.FeeBreakdown {
	return s.Compute(price.Mul(decimal.NewFromInt(quantity)), side)
}

func (s Schedule) floor(v decimal.Decimal) decimal.Decimal {
	return v.RoundFloor(s.Scale)
}
