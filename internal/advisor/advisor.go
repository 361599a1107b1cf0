// Package advisor computes what can actually be sold when a sell request
// cannot be satisfied as asked. It only produces advice; it never places or
// alters an order.
package advisor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/fee"
	"github.com/investv3/trading-engine/internal/model"
)

// Kind enumerates the advisory outcomes.
type Kind string

const (
	Approved           Kind = "approved"
	SuggestAlternative Kind = "suggest_alternative"
	NotRecommended     Kind = "not_recommended"
	Rejected           Kind = "rejected"
	InsufficientStock  Kind = "insufficient_stock"
)

// Advice is the outcome of Advise. Quantity and NetProceeds refer to the
// requested quantity, except for SuggestAlternative where they describe the
// suggested quantity.
type Advice struct {
	Kind        Kind            `json:"kind"`
	Requested   int64           `json:"requested"`
	Available   int64           `json:"available"`
	Quantity    int64           `json:"quantity"`
	NetProceeds decimal.Decimal `json:"net_proceeds"`
	Reason      string          `json:"reason,omitempty"`
}

// Executable reports whether the requested quantity may be sold as is.
func (a Advice) Executable() bool {
	return a.Kind == Approved || a.Kind == NotRecommended
}

// Message is a human-readable summary suitable for display.
func (a Advice) Message() string {
	switch a.Kind {
	case Approved:
		return fmt.Sprintf("sell %d shares for net proceeds %s", a.Quantity, a.NetProceeds)
	case SuggestAlternative:
		return fmt.Sprintf("requested %d shares but only %d available; sell %d for net proceeds %s instead",
			a.Requested, a.Available, a.Quantity, a.NetProceeds)
	case NotRecommended:
		return fmt.Sprintf("net proceeds %s for %d shares are below the minimum trade amount; fees take a large share",
			a.NetProceeds, a.Quantity)
	case Rejected:
		return a.Reason
	case InsufficientStock:
		return fmt.Sprintf("no shares available to sell (requested %d)", a.Requested)
	}
	return string(a.Kind)
}

// Advisor evaluates sell quantities against holdings, fees and a
// minimum-notional floor.
type Advisor struct {
	Fees        fee.Schedule
	MinNotional decimal.Decimal
}

// New creates an advisor.
func New(fees fee.Schedule, minNotional decimal.Decimal) *Advisor {
	return &Advisor{Fees: fees, MinNotional: minNotional}
}

// Advise evaluates selling requested shares out of available at price.
//
// Checks run in a fixed order:
//  1. available == 0            → InsufficientStock
//  2. requested <= 0, price <= 0 → Rejected
//  3. requested > available     → SuggestAlternative(available)
//  4. net proceeds <= 0         → Rejected
//  5. net proceeds < floor      → NotRecommended
//  6. otherwise                 → Approved
func (a *Advisor) Advise(requested, available int64, price decimal.Decimal) Advice {
	if available <= 0 {
		return Advice{
			Kind:        InsufficientStock,
			Requested:   requested,
			Available:   0,
			NetProceeds: decimal.Zero,
		}
	}
	if requested <= 0 {
		return Advice{
			Kind:        Rejected,
			Requested:   requested,
			Available:   available,
			Quantity:    requested,
			NetProceeds: decimal.Zero,
			Reason:      "quantity must be positive",
		}
	}
	if !price.IsPositive() {
		return Advice{
			Kind:        Rejected,
			Requested:   requested,
			Available:   available,
			Quantity:    requested,
			NetProceeds: decimal.Zero,
			Reason:      "price must be positive",
		}
	}

	if requested > available {
		return Advice{
			Kind:        SuggestAlternative,
			Requested:   requested,
			Available:   available,
			Quantity:    available,
			NetProceeds: a.proceeds(available, price),
		}
	}

	net := a.proceeds(requested, price)
	out := Advice{
		Requested:   requested,
		Available:   available,
		Quantity:    requested,
		NetProceeds: net,
	}
	switch {
	case !net.IsPositive():
		out.Kind = Rejected
		out.Reason = fmt.Sprintf("net proceeds %s do not cover fees and tax", net)
	case net.LessThan(a.MinNotional):
		out.Kind = NotRecommended
	default:
		out.Kind = Approved
	}
	return out
}

func (a *Advisor) proceeds(quantity int64, price decimal.Decimal) decimal.Decimal {
	return a.Fees.ForTrade(quantity, price, model.SideSell).NetAmount
}
