package price

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/symbol"
)

// LatestTrader is the part of the Alpaca market data client the feed uses.
type LatestTrader interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// AlpacaFeed prices US symbols from the latest Alpaca trade. Credentials
// come from the APCA_* environment variables read by the client.
type AlpacaFeed struct {
	client LatestTrader
}

// NewAlpacaFeed creates a feed with a default market data client.
func NewAlpacaFeed() *AlpacaFeed {
	return &AlpacaFeed{client: marketdata.NewClient(marketdata.ClientOpts{})}
}

// NewAlpacaFeedWithClient creates a feed around an existing client.
func NewAlpacaFeedWithClient(client LatestTrader) *AlpacaFeed {
	return &AlpacaFeed{client: client}
}

func (f *AlpacaFeed) CurrentPrice(ctx context.Context, sym string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	ticker := sym
	if s, err := symbol.Parse(sym); err == nil {
		ticker = s.Code
	}

	trade, err := f.client.GetLatestTrade(ticker, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrPriceUnavailable, sym, err)
	}
	if trade == nil || trade.Price <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s: no trades", ErrPriceUnavailable, sym)
	}
	return decimal.NewFromFloat(trade.Price), nil
}
