package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var now = time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

func newAccount(id, user, tournament string) model.Account {
	return model.Account{
		ID:           id,
		UserID:       user,
		TournamentID: tournament,
		CashBalance:  d("1000000"),
		InitialCash:  d("1000000"),
		Positions:    map[string]model.Position{},
		CreatedAt:    now,
		LastUpdated:  now,
	}
}

func TestMemoryStore_AccountLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	acct := newAccount("acc1", "user1", "t1")
	if err := s.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("create: %v", err)
	}

	acct.CashBalance = d("900000")
	acct.Positions["2330"] = model.Position{AccountID: "acc1", Symbol: "2330", Quantity: 100, AverageCost: d("925"), CurrentPrice: d("925")}
	if err := s.SaveAccount(ctx, acct); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadAccount(ctx, "acc1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.CashBalance.Equal(d("900000")) || got.Positions["2330"].Quantity != 100 {
		t.Errorf("unexpected account %+v", got)
	}

	// Mutating the loaded copy must not leak into the store.
	delete(got.Positions, "2330")
	p, err := s.LoadPosition(ctx, "acc1", "2330")
	if err != nil || p == nil || p.Quantity != 100 {
		t.Errorf("expected stored position, got %+v (%v)", p, err)
	}

	p, err = s.LoadPosition(ctx, "acc1", "2317")
	if err != nil || p != nil {
		t.Errorf("expected no position, got %+v (%v)", p, err)
	}
}

func TestMemoryStore_NotFoundAndConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.LoadAccount(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.LoadPosition(ctx, "missing", "2330"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveAccount(ctx, newAccount("missing", "u", "")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_ = s.CreateAccount(ctx, newAccount("acc1", "user1", "t1"))
	if err := s.CreateAccount(ctx, newAccount("acc1", "user2", "t1")); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate id: expected ErrConflict, got %v", err)
	}
	if err := s.CreateAccount(ctx, newAccount("acc2", "user1", "t1")); !errors.Is(err, ErrConflict) {
		t.Errorf("second account in tournament: expected ErrConflict, got %v", err)
	}
	if err := s.CreateAccount(ctx, newAccount("acc3", "user1", "t2")); err != nil {
		t.Errorf("other tournament should be allowed, got %v", err)
	}
}

func TestMemoryStore_TradeRecordsAreWriteOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := model.TradeRecord{ID: "t1", AccountID: "acc1", Symbol: "2330", Side: model.SideBuy, Quantity: 1}
	if err := s.AppendTradeRecord(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendTradeRecord(ctx, rec); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	_ = s.AppendTradeRecord(ctx, model.TradeRecord{ID: "t2", AccountID: "acc1"})
	_ = s.AppendTradeRecord(ctx, model.TradeRecord{ID: "t3", AccountID: "acc2"})

	recs, _ := s.TradeRecordsByAccount(ctx, "acc1")
	if len(recs) != 2 || recs[0].ID != "t1" || recs[1].ID != "t2" {
		t.Errorf("expected t1, t2 in order, got %+v", recs)
	}
}

func TestMemoryStore_CommitTrade(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.CreateAccount(ctx, newAccount("acc1", "user1", ""))

	next := newAccount("acc1", "user1", "")
	next.CashBalance = d("1")
	_ = s.AppendTradeRecord(ctx, model.TradeRecord{ID: "dup", AccountID: "acc1"})

	if err := s.CommitTrade(ctx, next, model.TradeRecord{ID: "dup", AccountID: "acc1"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got, _ := s.LoadAccount(ctx, "acc1")
	if !got.CashBalance.Equal(d("1000000")) {
		t.Errorf("failed commit must not change the account, got %s", got.CashBalance)
	}

	if err := s.CommitTrade(ctx, next, model.TradeRecord{ID: "ok", AccountID: "acc1"}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, _ = s.LoadAccount(ctx, "acc1")
	if !got.CashBalance.Equal(d("1")) {
		t.Errorf("expected committed cash 1, got %s", got.CashBalance)
	}
}

func TestMemoryStore_Participants(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.CreateAccount(ctx, newAccount("b", "u2", "t1"))
	_ = s.CreateAccount(ctx, newAccount("a", "u1", "t1"))
	_ = s.CreateAccount(ctx, newAccount("c", "u3", "t2"))

	accts, err := s.LoadParticipantSnapshots(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(accts) != 2 || accts[0].ID != "a" || accts[1].ID != "b" {
		t.Errorf("expected [a b], got %+v", accts)
	}
}

func TestMemoryStore_RankingPassesAreKept(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	latest, _ := s.LatestRankingSnapshots(ctx, "t1")
	if latest == nil || len(latest) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", latest)
	}

	_ = s.AppendRankingSnapshots(ctx, []model.RankingSnapshot{{TournamentID: "t1", AccountID: "a", Rank: 1}})
	_ = s.AppendRankingSnapshots(ctx, []model.RankingSnapshot{{TournamentID: "t1", AccountID: "a", Rank: 2}})

	latest, _ = s.LatestRankingSnapshots(ctx, "t1")
	if len(latest) != 1 || latest[0].Rank != 2 {
		t.Errorf("expected latest pass, got %+v", latest)
	}
	if h := s.RankingHistory("t1"); len(h) != 2 {
		t.Errorf("expected 2 passes kept, got %d", len(h))
	}
}

func TestMemoryStore_Tournaments(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tour := model.Tournament{ID: "t1", Name: "Autumn Cup", Status: model.TournamentOngoing}

	if err := s.CreateTournament(ctx, tour); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateTournament(ctx, tour); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	got, err := s.GetTournament(ctx, "t1")
	if err != nil || got.Name != "Autumn Cup" {
		t.Errorf("unexpected tournament %+v (%v)", got, err)
	}
	if _, err := s.GetTournament(ctx, "t9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// plainStore hides MemoryStore's CommitTrade so Commit takes the
// compensation path.
type plainStore struct {
	Store
	failAppend  bool
	failRestore bool
	saves       int
}

func (p *plainStore) AppendTradeRecord(ctx context.Context, rec model.TradeRecord) error {
	if p.failAppend {
		return errors.New("disk full")
	}
	return p.Store.AppendTradeRecord(ctx, rec)
}

func (p *plainStore) SaveAccount(ctx context.Context, acct model.Account) error {
	p.saves++
	if p.failRestore && p.saves > 1 {
		return errors.New("connection lost")
	}
	return p.Store.SaveAccount(ctx, acct)
}

func TestCommit_CompensatesFailedAppend(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	prev := newAccount("acc1", "user1", "")
	_ = mem.CreateAccount(ctx, prev)

	st := &plainStore{Store: mem, failAppend: true}
	next := prev.Clone()
	next.CashBalance = d("10")

	err := Commit(ctx, st, prev, next, model.TradeRecord{ID: "t1", AccountID: "acc1"})
	if err == nil || errors.Is(err, ErrReconcile) {
		t.Fatalf("expected plain append error, got %v", err)
	}
	got, _ := mem.LoadAccount(ctx, "acc1")
	if !got.CashBalance.Equal(prev.CashBalance) {
		t.Errorf("account not restored: %s", got.CashBalance)
	}
	if recs, _ := mem.TradeRecordsByAccount(ctx, "acc1"); len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestCommit_ReportsFailedRestore(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	prev := newAccount("acc1", "user1", "")
	_ = mem.CreateAccount(ctx, prev)

	st := &plainStore{Store: mem, failAppend: true, failRestore: true}
	next := prev.Clone()
	next.CashBalance = d("10")

	err := Commit(ctx, st, prev, next, model.TradeRecord{ID: "t1", AccountID: "acc1"})
	if !errors.Is(err, ErrReconcile) {
		t.Fatalf("expected ErrReconcile, got %v", err)
	}
}

func TestCommit_CompensationPathSucceeds(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	prev := newAccount("acc1", "user1", "")
	_ = mem.CreateAccount(ctx, prev)

	st := &plainStore{Store: mem}
	next := prev.Clone()
	next.CashBalance = d("10")

	if err := Commit(ctx, st, prev, next, model.TradeRecord{ID: "t1", AccountID: "acc1"}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, _ := mem.LoadAccount(ctx, "acc1")
	if !got.CashBalance.Equal(d("10")) {
		t.Errorf("expected cash 10, got %s", got.CashBalance)
	}
}
