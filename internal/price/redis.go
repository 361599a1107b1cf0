package price

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisFeed reads prices published by an external quote process under
// price:{symbol} as decimal strings.
type RedisFeed struct {
	rdb *redis.Client
}

// NewRedisFeed creates a feed backed by rdb.
func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

func priceKey(symbol string) string { return "price:" + symbol }

func (f *RedisFeed) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	raw, err := f.rdb.Get(ctx, priceKey(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrPriceUnavailable, symbol, err)
	}
	px, err := decimal.NewFromString(raw)
	if err != nil || !px.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s: bad value %q", ErrPriceUnavailable, symbol, raw)
	}
	return px, nil
}

// Publish stores price for symbol. Used by seeding tools and tests.
func (f *RedisFeed) Publish(ctx context.Context, symbol string, price decimal.Decimal) error {
	return f.rdb.Set(ctx, priceKey(symbol), price.String(), 0).Err()
}
