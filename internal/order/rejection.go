package order

import (
	"errors"

	"github.com/investv3/trading-engine/internal/advisor"
)

// Reason is the machine-readable rejection kind reported to callers.
type Reason string

const (
	ReasonInvalidQuantity      Reason = "invalid_quantity"
	ReasonInsufficientCash     Reason = "insufficient_cash"
	ReasonInsufficientHoldings Reason = "insufficient_holdings"
	ReasonBelowMinimumNotional Reason = "below_minimum_notional"
	ReasonInvalidSide          Reason = "invalid_side"
	ReasonInvalidOrderType     Reason = "invalid_order_type"
	ReasonInvalidSymbol        Reason = "invalid_symbol"
	ReasonInvalidPrice         Reason = "invalid_price"
	ReasonLimitNotMarketable   Reason = "limit_not_marketable"
	ReasonExceedsPositionLimit Reason = "exceeds_position_limit"
	ReasonTournamentNotActive  Reason = "tournament_not_active"
)

var (
	ErrInvalidQuantity      = errors.New("order: invalid quantity")
	ErrInsufficientCash     = errors.New("order: insufficient cash")
	ErrInsufficientHoldings = errors.New("order: insufficient holdings")
	ErrBelowMinimumNotional = errors.New("order: below minimum notional")
	ErrInvalidSide          = errors.New("order: invalid side")
	ErrInvalidOrderType     = errors.New("order: invalid order type")
	ErrInvalidSymbol        = errors.New("order: invalid symbol")
	ErrInvalidPrice         = errors.New("order: invalid price")
	ErrLimitNotMarketable   = errors.New("order: limit price not marketable")
	ErrExceedsPositionLimit = errors.New("order: exceeds position limit")
	ErrTournamentNotActive  = errors.New("order: tournament not active")
)

var sentinels = map[Reason]error{
	ReasonInvalidQuantity:      ErrInvalidQuantity,
	ReasonInsufficientCash:     ErrInsufficientCash,
	ReasonInsufficientHoldings: ErrInsufficientHoldings,
	ReasonBelowMinimumNotional: ErrBelowMinimumNotional,
	ReasonInvalidSide:          ErrInvalidSide,
	ReasonInvalidOrderType:     ErrInvalidOrderType,
	ReasonInvalidSymbol:        ErrInvalidSymbol,
	ReasonInvalidPrice:         ErrInvalidPrice,
	ReasonLimitNotMarketable:   ErrLimitNotMarketable,
	ReasonExceedsPositionLimit: ErrExceedsPositionLimit,
	ReasonTournamentNotActive:  ErrTournamentNotActive,
}

// Rejection is a user-facing refusal of an order. It unwraps to the
// sentinel for its Reason so callers can test it with errors.Is.
type Rejection struct {
	Reason  Reason          `json:"reason"`
	Message string          `json:"error"`
	Advice  *advisor.Advice `json:"advice,omitempty"`
}

func reject(reason Reason, msg string) *Rejection {
	return &Rejection{Reason: reason, Message: msg}
}

func (r *Rejection) Error() string {
	return r.Message
}

func (r *Rejection) Unwrap() error {
	return sentinels[r.Reason]
}

// AsRejection returns the Rejection wrapped in err, if any.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
