package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/investv3/trading-engine/internal/model"
)

// newPostgresStore connects to TEST_DATABASE_URL, skipping when it is unset.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

// checkSameInstantPasses appends two ranking passes stamped with the same
// instant and expects both to be stored, with the second reported as latest.
func checkSameInstantPasses(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	tid := "t-" + uuid.NewString()

	pass := func(rankA, rankB int) []model.RankingSnapshot {
		return []model.RankingSnapshot{
			{TournamentID: tid, AccountID: "a", UserID: "u1", Rank: rankA, AsOf: now, Percentile: d("0"), TotalValue: d("1"), ReturnRate: d("0")},
			{TournamentID: tid, AccountID: "b", UserID: "u2", Rank: rankB, AsOf: now, Percentile: d("0"), TotalValue: d("1"), ReturnRate: d("0")},
		}
	}
	if err := s.AppendRankingSnapshots(ctx, pass(1, 2)); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if err := s.AppendRankingSnapshots(ctx, pass(2, 1)); err != nil {
		t.Fatalf("second pass at the same instant: %v", err)
	}

	latest, err := s.LatestRankingSnapshots(ctx, tid)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 rows in latest pass, got %d", len(latest))
	}
	for _, r := range latest {
		if (r.AccountID == "a" && r.Rank != 2) || (r.AccountID == "b" && r.Rank != 1) {
			t.Errorf("latest pass holds %s rank %d, want the second pass", r.AccountID, r.Rank)
		}
	}
}

func TestMemoryStore_SameInstantRankingPasses(t *testing.T) {
	checkSameInstantPasses(t, NewMemoryStore())
}

func TestPostgresStore_SameInstantRankingPasses(t *testing.T) {
	checkSameInstantPasses(t, newPostgresStore(t))
}
