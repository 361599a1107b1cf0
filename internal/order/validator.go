// Package order validates proposed trades against an account's cash and
// holdings. Validation is a pure check: nothing is mutated, and a passing
// order carries its fee breakdown so the executor never recomputes it.
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/advisor"
	"github.com/investv3/trading-engine/internal/fee"
	"github.com/investv3/trading-engine/internal/limits"
	"github.com/investv3/trading-engine/internal/model"
	"github.com/investv3/trading-engine/internal/portfolio"
	"github.com/investv3/trading-engine/internal/symbol"
)

// Rules configures a Validator.
type Rules struct {
	Fees        fee.Schedule
	MinNotional decimal.Decimal
	LotSize     int64
	MaxQuantity int64  // 0 = unlimited
	Currency    string // ISO 4217 code used in messages
}

// Input is everything a validation needs. Position is nil when the account
// holds none of the symbol; Tournament is nil for general-mode accounts.
type Input struct {
	Order       model.OrderRequest
	Account     model.Account
	Position    *model.Position
	MarketPrice decimal.Decimal
	Tournament  *model.Tournament
	Now         time.Time
}

// Validated is an order that passed validation.
type Validated struct {
	Order  model.OrderRequest `json:"order"` // symbol normalized, type defaulted
	Price  decimal.Decimal    `json:"price"` // fill price
	Fees   model.FeeBreakdown `json:"fees"`
	Advice *advisor.Advice    `json:"advice,omitempty"` // sells only
}

// Validator checks orders against Rules.
type Validator struct {
	rules   Rules
	advisor *advisor.Advisor
}

// NewValidator creates a validator.
func NewValidator(rules Rules) *Validator {
	if rules.Currency == "" {
		rules.Currency = "TWD"
	}
	return &Validator{
		rules:   rules,
		advisor: advisor.New(rules.Fees, rules.MinNotional),
	}
}

// Rules returns the validator's configuration.
func (v *Validator) Rules() Rules {
	return v.rules
}

// Advisor returns the sell advisor sharing the validator's fees and floor.
func (v *Validator) Advisor() *advisor.Advisor {
	return v.advisor
}

// Normalize returns req with its symbol in canonical form (when it parses)
// and an empty type defaulted to market. It does not validate.
func Normalize(req model.OrderRequest) model.OrderRequest {
	if sym, err := symbol.Normalize(req.Symbol); err == nil {
		req.Symbol = sym
	}
	if req.Type == "" {
		req.Type = model.OrderTypeMarket
	}
	return req
}

// Validate checks in and returns the validated order or a *Rejection.
func (v *Validator) Validate(in Input) (Validated, error) {
	req := in.Order

	if t := in.Tournament; t != nil && !t.AcceptsTrades(in.Now) {
		return Validated{}, reject(ReasonTournamentNotActive,
			fmt.Sprintf("tournament %s is not accepting trades (status %s)", t.ID, t.Status))
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		return Validated{}, reject(ReasonInvalidSymbol, fmt.Sprintf("invalid symbol %q", req.Symbol))
	}
	req.Symbol = sym

	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return Validated{}, reject(ReasonInvalidSide, "side must be buy or sell")
	}

	if req.Quantity <= 0 {
		return Validated{}, reject(ReasonInvalidQuantity,
			fmt.Sprintf("quantity must be positive, got %d", req.Quantity))
	}
	limiter := v.limiter(in.Tournament)
	if err := limiter.CheckQuantity(req.Quantity); err != nil {
		switch {
		case errors.Is(err, limits.ErrNotWholeLot):
			return Validated{}, reject(ReasonInvalidQuantity,
				fmt.Sprintf("quantity %d is not a multiple of the lot size %d", req.Quantity, limiter.LotSize))
		default:
			return Validated{}, reject(ReasonInvalidQuantity,
				fmt.Sprintf("quantity %d exceeds the per-trade maximum of %d", req.Quantity, limiter.MaxQuantity))
		}
	}

	price, rej := v.fillPrice(&req, in.MarketPrice)
	if rej != nil {
		return Validated{}, rej
	}

	fb := v.rules.Fees.ForTrade(req.Quantity, price, req.Side)
	out := Validated{Order: req, Price: price, Fees: fb}

	if req.Side == model.SideBuy {
		return v.validateBuy(in, out, limiter)
	}
	return v.validateSell(in, out)
}

func (v *Validator) validateBuy(in Input, out Validated, limiter *limits.PositionLimiter) (Validated, error) {
	fb := out.Fees
	if fb.Notional.LessThan(v.rules.MinNotional) {
		return Validated{}, reject(ReasonBelowMinimumNotional,
			fmt.Sprintf("trade amount %s is below the minimum of %s",
				v.format(fb.Notional), v.format(v.rules.MinNotional)))
	}
	if fb.NetAmount.GreaterThan(in.Account.CashBalance) {
		return Validated{}, reject(ReasonInsufficientCash,
			fmt.Sprintf("insufficient cash: need %s (including fee %s), available %s",
				v.format(fb.NetAmount), v.format(fb.Fee), v.format(in.Account.CashBalance)))
	}

	// The traded symbol is valued at the fill price for the allocation check.
	marked := portfolio.MarkToMarket(in.Account, map[string]decimal.Decimal{out.Order.Symbol: out.Price}, in.Now)
	if err := limiter.CheckAllocation(out.Order.Symbol, fb.Notional, marked); err != nil {
		return Validated{}, reject(ReasonExceedsPositionLimit,
			fmt.Sprintf("buying %s of %s would exceed the %s%% single-stock limit",
				v.format(fb.Notional), out.Order.Symbol, limiter.MaxAllocationPct))
	}
	return out, nil
}

func (v *Validator) validateSell(in Input, out Validated) (Validated, error) {
	var held int64
	if in.Position != nil {
		held = in.Position.Quantity
	}

	adv := v.advisor.Advise(out.Order.Quantity, held, out.Price)
	switch adv.Kind {
	case advisor.InsufficientStock, advisor.SuggestAlternative:
		r := reject(ReasonInsufficientHoldings,
			fmt.Sprintf("insufficient holdings: requested %d shares of %s, holding %d",
				out.Order.Quantity, out.Order.Symbol, held))
		r.Advice = &adv
		return Validated{}, r
	}

	fb := out.Fees
	if fb.Notional.LessThan(v.rules.MinNotional) || adv.Kind == advisor.Rejected {
		r := reject(ReasonBelowMinimumNotional,
			fmt.Sprintf("sale amount %s nets %s after costs, below the minimum of %s",
				v.format(fb.Notional), v.format(fb.NetAmount), v.format(v.rules.MinNotional)))
		r.Advice = &adv
		return Validated{}, r
	}

	out.Advice = &adv
	return out, nil
}

// fillPrice resolves the execution price and defaults the order type.
func (v *Validator) fillPrice(req *model.OrderRequest, market decimal.Decimal) (decimal.Decimal, *Rejection) {
	if !market.IsPositive() {
		return decimal.Zero, reject(ReasonInvalidPrice,
			fmt.Sprintf("no valid market price for %s", req.Symbol))
	}

	switch req.Type {
	case "", model.OrderTypeMarket:
		req.Type = model.OrderTypeMarket
		return market, nil

	case model.OrderTypeLimit:
		limit := req.LimitPrice
		if !limit.IsPositive() {
			return decimal.Zero, reject(ReasonInvalidPrice, "limit orders require a positive limit price")
		}
		if req.Side == model.SideBuy && market.GreaterThan(limit) {
			return decimal.Zero, reject(ReasonLimitNotMarketable,
				fmt.Sprintf("market price %s is above the buy limit %s", v.format(market), v.format(limit)))
		}
		if req.Side == model.SideSell && market.LessThan(limit) {
			return decimal.Zero, reject(ReasonLimitNotMarketable,
				fmt.Sprintf("market price %s is below the sell limit %s", v.format(market), v.format(limit)))
		}
		return limit, nil
	}

	return decimal.Zero, reject(ReasonInvalidOrderType, fmt.Sprintf("unknown order type %q", req.Type))
}

func (v *Validator) limiter(t *model.Tournament) *limits.PositionLimiter {
	maxPct := decimal.Zero
	if t != nil {
		maxPct = t.MaxSingleStockRate
	}
	return limits.NewPositionLimiter(v.rules.LotSize, v.rules.MaxQuantity, maxPct)
}

// format renders amount in the configured currency, e.g. NT$1,000.00.
func (v *Validator) format(amount decimal.Decimal) string {
	cur := money.GetCurrency(v.rules.Currency)
	if cur == nil {
		return amount.String() + " " + v.rules.Currency
	}
	return cur.Formatter().Format(amount.Shift(int32(cur.Fraction)).IntPart())
}
