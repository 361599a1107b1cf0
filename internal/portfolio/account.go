// Package portfolio applies executed trades to accounts and derives
// valuations. ApplyTrade is the only code path that changes an account's
// cash balance or positions.
package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
	"github.com/investv3/trading-engine/internal/position"
)

// ApplyTrade applies rec to acct and returns the updated account together
// with the gross realized gain of a sell (zero for buys). acct itself is
// never modified, so a failed call leaves no partial state behind.
func ApplyTrade(acct model.Account, rec model.TradeRecord) (model.Account, decimal.Decimal, error) {
	if rec.AccountID != acct.ID {
		return model.Account{}, decimal.Zero, fmt.Errorf("%w: trade %s is for account %s, not %s",
			position.ErrInvariant, rec.ID, rec.AccountID, acct.ID)
	}

	next := acct.Clone()
	realized := decimal.Zero

	switch rec.Side {
	case model.SideBuy:
		var prev *model.Position
		if p, ok := next.Positions[rec.Symbol]; ok {
			prev = &p
		}
		pos, err := position.ApplyBuy(prev, acct.ID, rec.Symbol, rec.Quantity, rec.Price, rec.Timestamp)
		if err != nil {
			return model.Account{}, decimal.Zero, err
		}
		next.CashBalance = next.CashBalance.Sub(rec.Notional.Add(rec.Fee))
		next.Positions[rec.Symbol] = pos

	case model.SideSell:
		p, ok := next.Positions[rec.Symbol]
		if !ok {
			return model.Account{}, decimal.Zero, fmt.Errorf("%w: sell of %s without a position",
				position.ErrInvariant, rec.Symbol)
		}
		pos, gain, err := position.ApplySell(p, rec.Quantity, rec.Price, rec.Timestamp)
		if err != nil {
			return model.Account{}, decimal.Zero, err
		}
		next.CashBalance = next.CashBalance.Add(rec.NetAmount)
		if pos.Quantity == 0 {
			delete(next.Positions, rec.Symbol)
		} else {
			next.Positions[rec.Symbol] = pos
		}
		realized = gain

	default:
		return model.Account{}, decimal.Zero, fmt.Errorf("%w: trade %s has side %s",
			position.ErrInvariant, rec.ID, rec.Side)
	}

	if next.CashBalance.IsNegative() {
		return model.Account{}, decimal.Zero, fmt.Errorf("%w: cash balance would become %s",
			position.ErrInvariant, next.CashBalance)
	}
	next.LastUpdated = rec.Timestamp
	return next, realized, nil
}

// MarkToMarket returns a copy of acct with each position's current price
// replaced by prices[symbol] where present. Used for valuation only; the
// copy is not meant to be persisted.
func MarkToMarket(acct model.Account, prices map[string]decimal.Decimal, at time.Time) model.Account {
	marked := acct.Clone()
	for sym, p := range marked.Positions {
		if px, ok := prices[sym]; ok && px.IsPositive() {
			p.CurrentPrice = px
			p.LastUpdated = at
			marked.Positions[sym] = p
		}
	}
	return marked
}

// Valuation is a derived view of an account.
type Valuation struct {
	CashBalance   decimal.Decimal `json:"cash_balance"`
	MarketValue   decimal.Decimal `json:"market_value"`
	TotalValue    decimal.Decimal `json:"total_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	ReturnRate    decimal.Decimal `json:"return_rate"`    // fraction
	ReturnPercent decimal.Decimal `json:"return_percent"` // ReturnRate × 100, 2 places
}

// Value derives the valuation of acct from its source fields.
func Value(acct model.Account) Valuation {
	mv := decimal.Zero
	pnl := decimal.Zero
	for _, p := range acct.Positions {
		mv = mv.Add(p.MarketValue())
		pnl = pnl.Add(p.UnrealizedGainLoss())
	}
	rr := acct.ReturnRate()
	return Valuation{
		CashBalance:   acct.CashBalance,
		MarketValue:   mv,
		TotalValue:    acct.TotalValue(),
		UnrealizedPnL: pnl,
		ReturnRate:    rr,
		ReturnPercent: rr.Mul(decimal.NewFromInt(100)).Round(2),
	}
}
