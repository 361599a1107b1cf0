package symbol

import (
	"errors"
	"testing"
)

func TestParse_Valid(t *testing.T) {
	s, err := Parse("2330.TW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Code != "2330" {
		t.Errorf("expected code=2330, got %s", s.Code)
	}
	if s.Market != MarketTWSE {
		t.Errorf("expected market=TW, got %s", s.Market)
	}
	if s.String() != "2330.TW" {
		t.Errorf("expected canonical 2330.TW, got %s", s.String())
	}
}

func TestParse_NormalizesCaseAndSpace(t *testing.T) {
	got, err := Normalize("  aapl ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "AAPL" {
		t.Errorf("expected AAPL, got %s", got)
	}
}

func TestParse_BareCodes(t *testing.T) {
	for _, raw := range []string{"2330", "00878", "2883B", "6488.TWO", "MSFT.US"} {
		if _, err := Parse(raw); err != nil {
			t.Errorf("expected %q to parse, got %v", raw, err)
		}
	}
}

func TestParse_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"23",
		"2330.",
		"TOOLONG",
		"23-30",
		"2330.T",
	}
	for _, raw := range tests {
		_, err := Parse(raw)
		if !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("expected ErrInvalidSymbol for %q, got %v", raw, err)
		}
	}
}

func TestParse_UnsupportedMarket(t *testing.T) {
	_, err := Parse("2330.HK")
	if !errors.Is(err, ErrInvalidMarket) {
		t.Errorf("expected ErrInvalidMarket, got %v", err)
	}
}
