package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/config"
	"github.com/investv3/trading-engine/internal/price"
	"github.com/investv3/trading-engine/internal/symbol"
)

type publishCmd struct {
	redisURL string
}

func (*publishCmd) Name() string     { return "publish" }
func (*publishCmd) Synopsis() string { return "publish prices for the redis price feed" }
func (*publishCmd) Usage() string {
	return `ledgerctl publish [-redis <url>] <symbol>=<price>...

  Writes each price where a server running with PRICE_SOURCE=redis reads
  it. The Redis URL defaults to REDIS_URL.
`
}

func (c *publishCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.redisURL, "redis", "", "Redis URL. Defaults to REDIS_URL.")
}

func (c *publishCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one <symbol>=<price> is required")
		return subcommands.ExitUsageError
	}
	url := c.redisURL
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		url = cfg.RedisURL
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid redis url: %v\n", err)
		return subcommands.ExitUsageError
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	feed := price.NewRedisFeed(rdb)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, arg := range f.Args() {
		sym, px, err := parsePrice(arg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		if err := feed.Publish(ctx, sym, px); err != nil {
			fmt.Fprintf(os.Stderr, "publish %s: %v\n", sym, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("%s\t%s\n", sym, px)
	}
	return subcommands.ExitSuccess
}

func parsePrice(arg string) (string, decimal.Decimal, error) {
	raw, pxRaw, ok := strings.Cut(arg, "=")
	if !ok {
		return "", decimal.Zero, fmt.Errorf("expected <symbol>=<price>, got %q", arg)
	}
	sym, err := symbol.Normalize(raw)
	if err != nil {
		return "", decimal.Zero, err
	}
	px, err := decimal.NewFromString(pxRaw)
	if err != nil || !px.IsPositive() {
		return "", decimal.Zero, fmt.Errorf("invalid price %q for %s", pxRaw, sym)
	}
	return sym, px, nil
}
