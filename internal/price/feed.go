// Package price provides current-price lookups for the trade executor.
package price

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned when no positive price is known for a
// symbol. Retrying is the caller's decision.
var ErrPriceUnavailable = errors.New("price: unavailable")

// Feed returns the current price of a symbol.
type Feed interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StaticFeed serves prices set in memory. Safe for concurrent use.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticFeed creates a feed seeded with prices.
func NewStaticFeed(prices map[string]decimal.Decimal) *StaticFeed {
	f := &StaticFeed{prices: make(map[string]decimal.Decimal, len(prices))}
	for sym, px := range prices {
		f.prices[sym] = px
	}
	return f
}

// Set records the price of symbol.
func (f *StaticFeed) Set(symbol string, price decimal.Decimal) {
	f.mu.Lock()
	f.prices[symbol] = price
	f.mu.Unlock()
}

// Delete forgets symbol.
func (f *StaticFeed) Delete(symbol string) {
	f.mu.Lock()
	delete(f.prices, symbol)
	f.mu.Unlock()
}

func (f *StaticFeed) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	f.mu.RLock()
	px, ok := f.prices[symbol]
	f.mu.RUnlock()
	if !ok || !px.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return px, nil
}

// Chain asks each feed in turn and returns the first price found.
type Chain []Feed

func (c Chain) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var errs []error
	for _, f := range c {
		px, err := f.CurrentPrice(ctx, symbol)
		if err == nil {
			return px, nil
		}
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s: no feeds configured", ErrPriceUnavailable, symbol)
	}
	return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrPriceUnavailable, symbol, errors.Join(errs...))
}
