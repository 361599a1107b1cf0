// Package limits enforces per-trade size rules and the maximum share of an
// account that a single symbol may take up.
package limits

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

var (
	// ErrNotWholeLot is returned when a quantity is not a multiple of the
	// lot size.
	ErrNotWholeLot = errors.New("limits: quantity is not a whole number of lots")

	// ErrQuantityExceeded is returned when a single trade exceeds the
	// per-trade share maximum.
	ErrQuantityExceeded = errors.New("limits: per-trade quantity limit exceeded")

	// ErrAllocationExceeded is returned when a buy would push one symbol's
	// market value beyond the allowed percentage of total assets.
	ErrAllocationExceeded = errors.New("limits: single-symbol allocation limit exceeded")
)

var hundred = decimal.NewFromInt(100)

// PositionLimiter holds the limits. Zero values disable the corresponding
// check.
type PositionLimiter struct {
	// LotSize is the share count of one lot; quantities must be multiples.
	LotSize int64

	// MaxQuantity is the maximum number of shares in one trade.
	MaxQuantity int64

	// MaxAllocationPct is the maximum percentage of total assets one symbol
	// may represent after a buy.
	MaxAllocationPct decimal.Decimal
}

// NewPositionLimiter creates a limiter. lotSize < 1 is treated as 1.
func NewPositionLimiter(lotSize, maxQuantity int64, maxAllocationPct decimal.Decimal) *PositionLimiter {
	if lotSize < 1 {
		lotSize = 1
	}
	return &PositionLimiter{
		LotSize:          lotSize,
		MaxQuantity:      maxQuantity,
		MaxAllocationPct: maxAllocationPct,
	}
}

// CheckQuantity validates lot size and the per-trade maximum.
func (l *PositionLimiter) CheckQuantity(quantity int64) error {
	if l.LotSize > 1 && quantity%l.LotSize != 0 {
		return fmt.Errorf("%w: %d is not a multiple of %d", ErrNotWholeLot, quantity, l.LotSize)
	}
	if l.MaxQuantity > 0 && quantity > l.MaxQuantity {
		return fmt.Errorf("%w: %d > %d", ErrQuantityExceeded, quantity, l.MaxQuantity)
	}
	return nil
}

// CheckAllocation validates that buying notional more of symbol keeps its
// share of acct's total assets within MaxAllocationPct.
//
// allocation = (current market value of symbol + notional) / total assets × 100
func (l *PositionLimiter) CheckAllocation(symbol string, notional decimal.Decimal, acct model.Account) error {
	if !l.MaxAllocationPct.IsPositive() {
		return nil
	}
	total := acct.TotalValue()
	if !total.IsPositive() {
		return fmt.Errorf("%w: account has no assets", ErrAllocationExceeded)
	}

	current := decimal.Zero
	if p, ok := acct.Positions[symbol]; ok {
		current = p.MarketValue()
	}
	pct := current.Add(notional).Div(total).Mul(hundred)
	if pct.GreaterThan(l.MaxAllocationPct) {
		return fmt.Errorf("%w: %s would be %s%% of assets (max %s%%)",
			ErrAllocationExceeded, symbol, pct.Round(2), l.MaxAllocationPct)
	}
	return nil
}
