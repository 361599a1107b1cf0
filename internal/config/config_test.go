package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var keys = []string{
	"PORT", "DATABASE_URL", "REDIS_URL", "CACHE_TTL", "PRICE_SOURCE", "LOG_LEVEL",
	"FEE_RATE", "TAX_RATE", "MIN_FEE", "MIN_TAX", "MINOR_UNIT_SCALE",
	"MIN_NOTIONAL", "LOT_SIZE", "MAX_QUANTITY", "CURRENCY", "DEFAULT_INITIAL_CASH", "STATIC_PRICES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected Port '8080', got '%s'", cfg.Port)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("Expected CacheTTL 30s, got %s", cfg.CacheTTL)
	}
	if cfg.PriceSource != PriceSourceStatic {
		t.Errorf("Expected PriceSource static, got %s", cfg.PriceSource)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("Expected LogLevel INFO, got %s", cfg.LogLevel)
	}
	if !cfg.FeeRate.Equal(decimal.RequireFromString("0.001425")) || !cfg.TaxRate.Equal(decimal.RequireFromString("0.003")) {
		t.Errorf("unexpected rates %s / %s", cfg.FeeRate, cfg.TaxRate)
	}
	if !cfg.MinFee.Equal(decimal.NewFromInt(20)) || !cfg.MinNotional.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected minimums %s / %s", cfg.MinFee, cfg.MinNotional)
	}
	if cfg.LotSize != 1 || cfg.MaxQuantity != 0 || cfg.Currency != "TWD" {
		t.Errorf("unexpected order settings %+v", cfg)
	}
	if !cfg.DefaultInitialCash.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("Expected DefaultInitialCash 1000000, got %s", cfg.DefaultInitialCash)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("PRICE_SOURCE", "Alpaca")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MINOR_UNIT_SCALE", "2")
	t.Setenv("LOT_SIZE", "1000")
	t.Setenv("CURRENCY", "usd")
	t.Setenv("MIN_FEE", "0")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.PriceSource != PriceSourceAlpaca || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("overrides not applied: %+v", cfg)
	}

	s := cfg.FeeSchedule()
	if s.Scale != 2 || !s.MinimumFee.IsZero() {
		t.Errorf("unexpected schedule %+v", s)
	}
	r := cfg.OrderRules()
	if r.LotSize != 1000 || r.Currency != "USD" {
		t.Errorf("unexpected rules %+v", r)
	}
}

func TestFromEnv_InvalidValuesAreReported(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEE_RATE", "abc")
	t.Setenv("LOT_SIZE", "0")
	t.Setenv("CACHE_TTL", "soon")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range []string{"FEE_RATE", "LOT_SIZE", "CACHE_TTL"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should name %s: %v", key, err)
		}
	}
}

func TestFromEnv_RedisPricesNeedRedis(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICE_SOURCE", "redis")

	if _, err := FromEnv(); err == nil {
		t.Error("expected an error without REDIS_URL")
	}
}

func TestFromEnv_StaticPrices(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATIC_PRICES", " 2330=925, aapl=187.5 ")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.StaticPrices) != 2 {
		t.Fatalf("expected 2 prices, got %v", cfg.StaticPrices)
	}
	if !cfg.StaticPrices["AAPL"].Equal(decimal.RequireFromString("187.5")) {
		t.Errorf("expected AAPL 187.5, got %s", cfg.StaticPrices["AAPL"])
	}

	t.Setenv("STATIC_PRICES", "2330=-1,??=5")
	if _, err := FromEnv(); err == nil || !strings.Contains(err.Error(), "STATIC_PRICES") {
		t.Errorf("expected STATIC_PRICES error, got %v", err)
	}
}
