// Package model defines the core domain types shared across the trading engine.
// All monetary values use shopspring/decimal, never float64.
// Share quantities are whole shares.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order. The zero value is invalid.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	}
	return 0, fmt.Errorf("model: invalid side %q", s)
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	}
	return "invalid"
}

func (s Side) MarshalText() ([]byte, error) {
	if s != SideBuy && s != SideSell {
		return nil, fmt.Errorf("model: invalid side %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// OrderType selects how the execution price is determined.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderRequest is a proposed trade as submitted by a caller.
type OrderRequest struct {
	AccountID  string          `json:"account_id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   int64           `json:"quantity"`
	Type       OrderType       `json:"type"`                  // "" is treated as market
	LimitPrice decimal.Decimal `json:"limit_price,omitempty"` // required for limit orders
}

// FeeBreakdown is the cost decomposition of one trade.
// Buys: NetAmount = Notional + Fee. Sells: NetAmount = Notional - Fee - Tax.
type FeeBreakdown struct {
	Notional  decimal.Decimal `json:"notional"`
	Fee       decimal.Decimal `json:"fee"`
	Tax       decimal.Decimal `json:"tax"`
	NetAmount decimal.Decimal `json:"net_amount"`
}

// TotalCost is the transaction cost (fee + tax).
func (f FeeBreakdown) TotalCost() decimal.Decimal {
	return f.Fee.Add(f.Tax)
}

// Position is the holding of one symbol within one account.
// AverageCost is meaningful only while Quantity > 0.
type Position struct {
	AccountID    string          `json:"account_id"`
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// MarketValue is Quantity × CurrentPrice.
func (p Position) MarketValue() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedGainLoss is Quantity × (CurrentPrice − AverageCost).
func (p Position) UnrealizedGainLoss() decimal.Decimal {
	if p.Quantity == 0 {
		return decimal.Zero
	}
	return p.CurrentPrice.Sub(p.AverageCost).Mul(decimal.NewFromInt(p.Quantity))
}

// Account is a portfolio account: one per user per tournament (or the
// general mode when TournamentID is empty).
type Account struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id"`
	TournamentID string              `json:"tournament_id,omitempty"`
	CashBalance  decimal.Decimal     `json:"cash_balance"`
	InitialCash  decimal.Decimal     `json:"initial_cash"`
	Positions    map[string]Position `json:"positions"`
	CreatedAt    time.Time           `json:"created_at"`
	LastUpdated  time.Time           `json:"last_updated"`
}

// TotalValue is CashBalance + Σ(quantity × currentPrice). It is derived on
// every call and never cached.
func (a Account) TotalValue() decimal.Decimal {
	total := a.CashBalance
	for _, p := range a.Positions {
		total = total.Add(p.MarketValue())
	}
	return total
}

// ReturnRate is (TotalValue − InitialCash) / InitialCash as a fraction.
func (a Account) ReturnRate() decimal.Decimal {
	if !a.InitialCash.IsPositive() {
		return decimal.Zero
	}
	return a.TotalValue().Sub(a.InitialCash).Div(a.InitialCash)
}

// Clone returns a deep copy so the positions map can be changed freely.
func (a Account) Clone() Account {
	c := a
	c.Positions = make(map[string]Position, len(a.Positions))
	for k, v := range a.Positions {
		c.Positions[k] = v
	}
	return c
}

// TradeRecord is an immutable record of an executed trade.
// Once created, these are never modified or deleted.
type TradeRecord struct {
	ID               string           `json:"id"`
	AccountID        string           `json:"account_id"`
	TournamentID     string           `json:"tournament_id,omitempty"`
	Symbol           string           `json:"symbol"`
	Side             Side             `json:"side"`
	Type             OrderType        `json:"type"`
	Quantity         int64            `json:"quantity"`
	Price            decimal.Decimal  `json:"price"`
	Notional         decimal.Decimal  `json:"notional"`
	Fee              decimal.Decimal  `json:"fee"`
	Tax              decimal.Decimal  `json:"tax"`
	NetAmount        decimal.Decimal  `json:"net_amount"`
	RealizedGainLoss *decimal.Decimal `json:"realized_gain_loss,omitempty"` // sells only
	Timestamp        time.Time        `json:"timestamp"`
}

// RankingSnapshot is one participant's row in a leaderboard pass.
// Snapshots are appended per pass and kept for history.
type RankingSnapshot struct {
	TournamentID string          `json:"tournament_id"`
	AccountID    string          `json:"account_id"`
	UserID       string          `json:"user_id"`
	Rank         int             `json:"rank"`
	PreviousRank int             `json:"previous_rank"`
	RankChange   int             `json:"rank_change"` // previous - current; positive moved up
	Percentile   decimal.Decimal `json:"percentile"`
	TotalValue   decimal.Decimal `json:"total_value"`
	ReturnRate   decimal.Decimal `json:"return_rate"`
	AsOf         time.Time       `json:"as_of"`
}

// TournamentStatus is the lifecycle state of a tournament.
type TournamentStatus string

const (
	TournamentUpcoming TournamentStatus = "upcoming"
	TournamentOngoing  TournamentStatus = "ongoing"
	TournamentFinished TournamentStatus = "finished"
)

// Tournament groups participant accounts that are ranked against each other.
type Tournament struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Status             TournamentStatus `json:"status"`
	StartsAt           time.Time        `json:"starts_at"`
	EndsAt             time.Time        `json:"ends_at"`
	InitialCash        decimal.Decimal  `json:"initial_cash"`
	MaxSingleStockRate decimal.Decimal  `json:"max_single_stock_rate"` // percent; 0 = unlimited
	CreatedAt          time.Time        `json:"created_at"`
}

// AcceptsTrades reports whether trading is open at now.
func (t Tournament) AcceptsTrades(now time.Time) bool {
	if t.Status != TournamentOngoing {
		return false
	}
	return !now.Before(t.StartsAt) && !now.After(t.EndsAt)
}
