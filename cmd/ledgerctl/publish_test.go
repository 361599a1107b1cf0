package main

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	sym, px, err := parsePrice("2330.tw=925.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sym != "2330.TW" || !px.Equal(decimal.RequireFromString("925.5")) {
		t.Errorf("got %s=%s", sym, px)
	}

	for _, bad := range []string{"2330", "2330=", "2330=-1", "??=10", "2330=abc"} {
		if _, _, err := parsePrice(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}
