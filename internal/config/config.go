// Package config loads service configuration from the environment. An
// optional .env file in the working directory is read first; variables
// already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/fee"
	"github.com/investv3/trading-engine/internal/order"
	"github.com/investv3/trading-engine/internal/symbol"
)

// Price sources.
const (
	PriceSourceStatic = "static"
	PriceSourceRedis  = "redis"
	PriceSourceAlpaca = "alpaca"
)

// Config holds the service settings.
type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	CacheTTL     time.Duration
	PriceSource  string
	// StaticPrices seeds the static feed, e.g. STATIC_PRICES=2330=925,2317=105.
	StaticPrices map[string]decimal.Decimal
	LogLevel     slog.Level

	FeeRate        decimal.Decimal
	TaxRate        decimal.Decimal
	MinFee         decimal.Decimal
	MinTax         decimal.Decimal
	MinorUnitScale int32

	MinNotional        decimal.Decimal
	LotSize            int64
	MaxQuantity        int64
	Currency           string
	DefaultInitialCash decimal.Decimal
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	p := parser{}
	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		CacheTTL:     p.duration("CACHE_TTL", 30*time.Second),
		PriceSource:  strings.ToLower(getEnv("PRICE_SOURCE", PriceSourceStatic)),
		StaticPrices: p.prices("STATIC_PRICES"),
		LogLevel:     p.level("LOG_LEVEL", slog.LevelInfo),

		FeeRate:        p.decimal("FEE_RATE", fee.DefaultFeeRate),
		TaxRate:        p.decimal("TAX_RATE", fee.DefaultTaxRate),
		MinFee:         p.decimal("MIN_FEE", fee.DefaultMinimumFee),
		MinTax:         p.decimal("MIN_TAX", decimal.Zero),
		MinorUnitScale: int32(p.int("MINOR_UNIT_SCALE", 0)),

		MinNotional:        p.decimal("MIN_NOTIONAL", decimal.NewFromInt(100)),
		LotSize:            p.int("LOT_SIZE", 1),
		MaxQuantity:        p.int("MAX_QUANTITY", 0),
		Currency:           strings.ToUpper(getEnv("CURRENCY", "TWD")),
		DefaultInitialCash: p.decimal("DEFAULT_INITIAL_CASH", decimal.NewFromInt(1000000)),
	}

	switch cfg.PriceSource {
	case PriceSourceStatic, PriceSourceRedis, PriceSourceAlpaca:
	default:
		p.fail("PRICE_SOURCE", cfg.PriceSource)
	}
	if cfg.PriceSource == PriceSourceRedis && cfg.RedisURL == "" {
		p.errs = append(p.errs, errors.New("config: PRICE_SOURCE=redis requires REDIS_URL"))
	}
	if cfg.MinorUnitScale < 0 || cfg.MinorUnitScale > 8 {
		p.fail("MINOR_UNIT_SCALE", strconv.Itoa(int(cfg.MinorUnitScale)))
	}
	if cfg.LotSize < 1 {
		p.fail("LOT_SIZE", strconv.FormatInt(cfg.LotSize, 10))
	}
	if !cfg.DefaultInitialCash.IsPositive() {
		p.fail("DEFAULT_INITIAL_CASH", cfg.DefaultInitialCash.String())
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FeeSchedule returns the configured fee schedule.
func (c Config) FeeSchedule() fee.Schedule {
	return fee.Schedule{
		FeeRate:    c.FeeRate,
		TaxRate:    c.TaxRate,
		MinimumFee: c.MinFee,
		MinimumTax: c.MinTax,
		Scale:      c.MinorUnitScale,
	}
}

// OrderRules returns the validation rules.
func (c Config) OrderRules() order.Rules {
	return order.Rules{
		Fees:        c.FeeSchedule(),
		MinNotional: c.MinNotional,
		LotSize:     c.LotSize,
		MaxQuantity: c.MaxQuantity,
		Currency:    c.Currency,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser collects every invalid value so one run reports them all.
type parser struct {
	errs []error
}

func (p *parser) fail(key, value string) {
	p.errs = append(p.errs, fmt.Errorf("config: invalid %s %q", key, value))
}

func (p *parser) decimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		p.fail(key, raw)
		return fallback
	}
	return v
}

func (p *parser) int(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		p.fail(key, raw)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		p.fail(key, raw)
		return fallback
	}
	return v
}

func (p *parser) level(key string, fallback slog.Level) slog.Level {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(raw)); err != nil {
		p.fail(key, raw)
		return fallback
	}
	return l
}

func (p *parser) prices(key string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	raw := os.Getenv(key)
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		sym, px, ok := strings.Cut(strings.TrimSpace(pair), "=")
		sym, err := symbol.Normalize(sym)
		if !ok || err != nil {
			p.fail(key, pair)
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(px))
		if err != nil || !v.IsPositive() {
			p.fail(key, pair)
			continue
		}
		out[sym] = v
	}
	return out
}
