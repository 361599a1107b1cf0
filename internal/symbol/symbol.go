// Package symbol parses and normalizes tradable security symbols.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Supported market suffixes.
const (
	MarketTWSE = "TW"  // Taiwan Stock Exchange
	MarketTPEx = "TWO" // Taipei Exchange (OTC)
	MarketUS   = "US"
)

var validMarkets = map[string]bool{
	MarketTWSE: true,
	MarketTPEx: true,
	MarketUS:   true,
}

// symbolRegex matches {code}[.{market}] where code is a numeric Taiwan code
// (4-6 digits, optional letter class suffix) or a 1-5 letter ticker.
// Examples: 2330, 00878, 2330.TW, 6488.TWO, AAPL
var symbolRegex = regexp.MustCompile(
	`^([0-9]{4,6}[A-Z]?|[A-Z]{1,5})(?:\.([A-Z]{2,3}))?$`,
)

var (
	ErrInvalidSymbol = errors.New("symbol: invalid format")
	ErrInvalidMarket = errors.New("symbol: unsupported market")
)

// Symbol is a parsed security symbol.
type Symbol struct {
	Code   string `json:"code"`
	Market string `json:"market,omitempty"`
}

// String returns the canonical form: the code, followed by .{market} when
// one was given.
func (s Symbol) String() string {
	if s.Market == "" {
		return s.Code
	}
	return s.Code + "." + s.Market
}

// Parse validates raw and returns it in canonical (upper-case) form.
func Parse(raw string) (Symbol, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	matches := symbolRegex.FindStringSubmatch(norm)
	if matches == nil {
		return Symbol{}, fmt.Errorf("%w: %q (expected e.g. 2330 or 2330.TW)", ErrInvalidSymbol, raw)
	}

	market := matches[2]
	if market != "" && !validMarkets[market] {
		return Symbol{}, fmt.Errorf("%w: %s", ErrInvalidMarket, market)
	}
	return Symbol{Code: matches[1], Market: market}, nil
}

// Normalize is Parse reduced to the canonical string.
func Normalize(raw string) (string, error) {
	s, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}
