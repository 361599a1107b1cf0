// Command ledgerctl runs the ledger's pricing rules offline: fee quotes,
// sell advice, leaderboard passes over exported accounts, and price
// publication for the Redis feed.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var commands = []subcommands.Command{
	&feeCmd{},
	&adviseCmd{},
	&rankCmd{},
	&publishCmd{},
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
