package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/config"
	"github.com/investv3/trading-engine/internal/model"
)

type feeCmd struct {
	quantity int64
	price    string
	notional string
	side     string
}

func (*feeCmd) Name() string     { return "fee" }
func (*feeCmd) Synopsis() string { return "quote the fee, tax and net amount of a trade" }
func (*feeCmd) Usage() string {
	return `ledgerctl fee [-side buy|sell] (-notional <amount> | -q <shares> -price <price>)

  Applies the configured fee schedule (FEE_RATE, TAX_RATE, MIN_FEE, ...)
  to one trade and prints the breakdown.
`
}

func (c *feeCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.quantity, "q", 0, "Number of shares.")
	f.StringVar(&c.price, "price", "", "Price per share.")
	f.StringVar(&c.notional, "notional", "", "Trade notional. Overrides -q and -price.")
	f.StringVar(&c.side, "side", "buy", "Trade side (buy, sell).")
}

func (c *feeCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	side, err := model.ParseSide(c.side)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	var fb model.FeeBreakdown
	switch {
	case c.notional != "":
		n, err := decimal.NewFromString(c.notional)
		if err != nil || n.IsNegative() {
			fmt.Fprintf(os.Stderr, "invalid notional %q\n", c.notional)
			return subcommands.ExitUsageError
		}
		fb = cfg.FeeSchedule().Compute(n, side)
	case c.quantity > 0 && c.price != "":
		px, err := decimal.NewFromString(c.price)
		if err != nil || !px.IsPositive() {
			fmt.Fprintf(os.Stderr, "invalid price %q\n", c.price)
			return subcommands.ExitUsageError
		}
		fb = cfg.FeeSchedule().ForTrade(c.quantity, px, side)
	default:
		fmt.Fprintln(os.Stderr, "either -notional or both -q and -price are required")
		return subcommands.ExitUsageError
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "side\t%s\t\n", side)
	fmt.Fprintf(w, "notional\t%s\t\n", fb.Notional)
	fmt.Fprintf(w, "fee\t%s\t\n", fb.Fee)
	fmt.Fprintf(w, "tax\t%s\t\n", fb.Tax)
	fmt.Fprintf(w, "net\t%s\t\n", fb.NetAmount)
	w.Flush()
	return subcommands.ExitSuccess
}
