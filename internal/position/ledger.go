// Package position maintains per-symbol holdings with weighted-average cost.
//
// Calls are assumed pre-validated. A call that would break the holding
// invariants returns ErrInvariant: that is an upstream bug, not a user error.
package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

// ErrInvariant is returned when a ledger call would leave a position in an
// impossible state.
var ErrInvariant = errors.New("position: invariant violation")

// CostScale is the number of decimal places kept for average cost.
var CostScale int32 = 8

// ApplyBuy adds quantity shares bought at price to prev (nil when the
// account holds no shares of the symbol yet) and returns the new position.
func ApplyBuy(prev *model.Position, accountID, symbol string, quantity int64, price decimal.Decimal, at time.Time) (model.Position, error) {
	if quantity <= 0 {
		return model.Position{}, fmt.Errorf("%w: buy quantity %d", ErrInvariant, quantity)
	}
	if !price.IsPositive() {
		return model.Position{}, fmt.Errorf("%w: buy price %s", ErrInvariant, price)
	}

	if prev == nil || prev.Quantity == 0 {
		return model.Position{
			AccountID:    accountID,
			Symbol:       symbol,
			Quantity:     quantity,
			AverageCost:  price,
			CurrentPrice: price,
			LastUpdated:  at,
		}, nil
	}
	if prev.Quantity < 0 {
		return model.Position{}, fmt.Errorf("%w: %s holds negative quantity %d", ErrInvariant, prev.Symbol, prev.Quantity)
	}

	oldQty := decimal.NewFromInt(prev.Quantity)
	addQty := decimal.NewFromInt(quantity)
	newQty := prev.Quantity + quantity

	cost := oldQty.Mul(prev.AverageCost).Add(addQty.Mul(price))
	avg := cost.Div(decimal.NewFromInt(newQty)).Round(CostScale)

	next := *prev
	next.Quantity = newQty
	next.AverageCost = avg
	next.CurrentPrice = price
	next.LastUpdated = at
	return next, nil
}

// ApplySell removes quantity shares sold at price from pos. It returns the
// remaining position and the gross realized gain quantity × (price − averageCost).
// Average cost of the remaining shares is unchanged; a position sold down
// to zero comes back with Quantity 0 and no cost basis.
func ApplySell(pos model.Position, quantity int64, price decimal.Decimal, at time.Time) (model.Position, decimal.Decimal, error) {
	if quantity <= 0 {
		return model.Position{}, decimal.Zero, fmt.Errorf("%w: sell quantity %d", ErrInvariant, quantity)
	}
	if quantity > pos.Quantity {
		return model.Position{}, decimal.Zero, fmt.Errorf("%w: selling %d %s but ledger holds %d",
			ErrInvariant, quantity, pos.Symbol, pos.Quantity)
	}
	if !price.IsPositive() {
		return model.Position{}, decimal.Zero, fmt.Errorf("%w: sell price %s", ErrInvariant, price)
	}

	realized := price.Sub(pos.AverageCost).Mul(decimal.NewFromInt(quantity))

	next := pos
	next.Quantity = pos.Quantity - quantity
	next.CurrentPrice = price
	next.LastUpdated = at
	if next.Quantity == 0 {
		next.AverageCost = decimal.Zero
	}
	return next, realized, nil
}
