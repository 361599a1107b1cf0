// Package ranking orders tournament participants by return rate.
package ranking

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Rank produces one snapshot per account, ordered by return rate
// descending with ties broken by ascending account ID. previous holds the
// prior pass; accounts absent from it get PreviousRank = Rank.
//
// Accounts are expected to be marked to market already. Rank has no side
// effects; persisting the result is the caller's job.
func Rank(accounts []model.Account, previous []model.RankingSnapshot, tournamentID string, asOf time.Time) []model.RankingSnapshot {
	type entry struct {
		acct  model.Account
		total decimal.Decimal
		rate  decimal.Decimal
	}

	entries := make([]entry, len(accounts))
	for i, a := range accounts {
		entries[i] = entry{acct: a, total: a.TotalValue(), rate: a.ReturnRate()}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].rate.Cmp(entries[j].rate); c != 0 {
			return c > 0
		}
		return entries[i].acct.ID < entries[j].acct.ID
	})

	prior := make(map[string]int, len(previous))
	for _, p := range previous {
		prior[p.AccountID] = p.Rank
	}

	n := decimal.NewFromInt(int64(len(entries)))
	out := make([]model.RankingSnapshot, len(entries))
	for i, e := range entries {
		rank := i + 1
		prev, ok := prior[e.acct.ID]
		if !ok {
			prev = rank
		}
		out[i] = model.RankingSnapshot{
			TournamentID: tournamentID,
			AccountID:    e.acct.ID,
			UserID:       e.acct.UserID,
			Rank:         rank,
			PreviousRank: prev,
			RankChange:   prev - rank,
			Percentile:   percentile(n, rank),
			TotalValue:   e.total,
			ReturnRate:   e.rate,
			AsOf:         asOf,
		}
	}
	return out
}

// percentile is (n − rank) / n × 100, rounded to 2 places.
func percentile(n decimal.Decimal, rank int) decimal.Decimal {
	return n.Sub(decimal.NewFromInt(int64(rank))).Div(n).Mul(hundred).Round(2)
}
