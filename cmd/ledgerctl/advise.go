package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/advisor"
	"github.com/investv3/trading-engine/internal/config"
)

type adviseCmd struct {
	requested int64
	available int64
	price     string
}

func (*adviseCmd) Name() string     { return "advise" }
func (*adviseCmd) Synopsis() string { return "show the sell advice for a requested quantity" }
func (*adviseCmd) Usage() string {
	return `ledgerctl advise -requested <shares> -available <shares> -price <price>

  Prints the advice the order validator attaches to a sell of -requested
  shares when the account holds -available at -price. Exits non-zero when
  the sell as requested would be rejected.
`
}

func (c *adviseCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.requested, "requested", 0, "Shares the seller asks to sell.")
	f.Int64Var(&c.available, "available", 0, "Shares currently held.")
	f.StringVar(&c.price, "price", "", "Current market price.")
}

func (c *adviseCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	px, err := decimal.NewFromString(c.price)
	if err != nil || !px.IsPositive() {
		fmt.Fprintf(os.Stderr, "invalid price %q\n", c.price)
		return subcommands.ExitUsageError
	}
	if c.requested < 0 || c.available < 0 {
		fmt.Fprintln(os.Stderr, "quantities must not be negative")
		return subcommands.ExitUsageError
	}

	adv := advisor.New(cfg.FeeSchedule(), cfg.MinNotional).Advise(c.requested, c.available, px)
	fmt.Printf("%s: %s\n", adv.Kind, adv.Message())
	if adv.Quantity > 0 {
		fmt.Printf("sell %d for net proceeds of %s\n", adv.Quantity, adv.NetProceeds)
	}
	if adv.Kind != advisor.Approved {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
