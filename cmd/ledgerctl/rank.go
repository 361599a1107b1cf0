package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/investv3/trading-engine/internal/model"
	"github.com/investv3/trading-engine/internal/ranking"
)

type rankCmd struct {
	file       string
	previous   string
	tournament string
}

func (*rankCmd) Name() string     { return "rank" }
func (*rankCmd) Synopsis() string { return "rank exported accounts by return rate" }
func (*rankCmd) Usage() string {
	return `ledgerctl rank [-f accounts.json] [-prev ranking.json] [-t <tournament>]

  Reads a JSON array of accounts (as returned by GET /accounts/{id}, the
  "account" field) and prints the leaderboard. Positions are valued at
  their stored prices. With -prev, rank changes are computed against an
  earlier ranking (as returned by GET /tournaments/{id}/rankings).
`
}

func (c *rankCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "-", "Accounts file, or - for stdin.")
	f.StringVar(&c.previous, "prev", "", "Previous ranking file.")
	f.StringVar(&c.tournament, "t", "", "Tournament ID to stamp on the snapshots.")
}

func (c *rankCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var accounts []model.Account
	if err := decodeFile(c.file, &accounts); err != nil {
		fmt.Fprintf(os.Stderr, "read accounts: %v\n", err)
		return subcommands.ExitFailure
	}
	var previous []model.RankingSnapshot
	if c.previous != "" {
		if err := decodeFile(c.previous, &previous); err != nil {
			fmt.Fprintf(os.Stderr, "read previous ranking: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	snaps := ranking.Rank(accounts, previous, c.tournament, time.Now().UTC())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tACCOUNT\tTOTAL\tRETURN %\tPERCENTILE\tCHANGE")
	for _, s := range snaps {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%+d\n",
			s.Rank, s.AccountID, s.TotalValue, s.ReturnRate, s.Percentile, s.RankChange)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

func decodeFile(name string, v any) error {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return json.NewDecoder(r).Decode(v)
}
