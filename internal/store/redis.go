package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/investv3/trading-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and then replace the cached value
// (or drop it when the write fails). Reads check Redis first and fill a
// miss only if no writer has stored a value in the meantime, so a slow
// reader never puts an older account back over a newer one.
//
// Reads that feed a trade must not use the cache; see SourceOfTruth.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

var (
	_ TradeCommitter = (*CachedStore)(nil)
	_ Layered        = (*CachedStore)(nil)
)

// Primary returns the wrapped store.
func (s *CachedStore) Primary() Store {
	return s.primary
}

// --- Write-through (write to primary, then replace the cached value) ---

func (s *CachedStore) CreateAccount(ctx context.Context, acct model.Account) error {
	if err := s.primary.CreateAccount(ctx, acct); err != nil {
		return err
	}
	s.cache(ctx, accountKey(acct.ID), acct)
	return nil
}

func (s *CachedStore) SaveAccount(ctx context.Context, acct model.Account) error {
	err := s.primary.SaveAccount(ctx, acct)
	s.afterWrite(ctx, acct, err)
	return err
}

func (s *CachedStore) AppendTradeRecord(ctx context.Context, rec model.TradeRecord) error {
	return s.primary.AppendTradeRecord(ctx, rec)
}

// CommitTrade delegates to the primary's transaction when it has one and
// otherwise falls back to Commit with the primary's current account as the
// restore point.
func (s *CachedStore) CommitTrade(ctx context.Context, acct model.Account, rec model.TradeRecord) error {
	err := s.commitPrimary(ctx, acct, rec)
	s.afterWrite(ctx, acct, err)
	return err
}

func (s *CachedStore) commitPrimary(ctx context.Context, acct model.Account, rec model.TradeRecord) error {
	if tc, ok := s.primary.(TradeCommitter); ok {
		return tc.CommitTrade(ctx, acct, rec)
	}
	prev, err := s.primary.LoadAccount(ctx, acct.ID)
	if err != nil {
		return err
	}
	return Commit(ctx, s.primary, prev, acct, rec)
}

// afterWrite caches acct once the primary accepted it. On a failed write,
// or if the cache cannot be updated, the key is dropped instead.
func (s *CachedStore) afterWrite(ctx context.Context, acct model.Account, err error) {
	ctx = context.WithoutCancel(ctx)
	if err == nil && s.cache(ctx, accountKey(acct.ID), acct) == nil {
		return
	}
	s.rdb.Del(ctx, accountKey(acct.ID))
}

func (s *CachedStore) CreateTournament(ctx context.Context, t model.Tournament) error {
	if err := s.primary.CreateTournament(ctx, t); err != nil {
		return err
	}
	s.cache(ctx, tournamentKey(t.ID), t)
	return nil
}

func (s *CachedStore) AppendRankingSnapshots(ctx context.Context, snaps []model.RankingSnapshot) error {
	if err := s.primary.AppendRankingSnapshots(ctx, snaps); err != nil {
		return err
	}
	if len(snaps) > 0 {
		s.rdb.Del(ctx, rankingKey(snaps[0].TournamentID))
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) LoadAccount(ctx context.Context, id string) (model.Account, error) {
	var a model.Account
	if s.lookup(ctx, accountKey(id), &a) {
		if a.Positions == nil {
			a.Positions = map[string]model.Position{}
		}
		return a, nil
	}

	a, err := s.primary.LoadAccount(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	s.fill(ctx, accountKey(id), a)
	return a, nil
}

func (s *CachedStore) LoadPosition(ctx context.Context, accountID, symbol string) (*model.Position, error) {
	a, err := s.LoadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	p, ok := a.Positions[symbol]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *CachedStore) GetTournament(ctx context.Context, id string) (model.Tournament, error) {
	var t model.Tournament
	if s.lookup(ctx, tournamentKey(id), &t) {
		return t, nil
	}

	t, err := s.primary.GetTournament(ctx, id)
	if err != nil {
		return model.Tournament{}, err
	}
	s.fill(ctx, tournamentKey(id), t)
	return t, nil
}

func (s *CachedStore) LatestRankingSnapshots(ctx context.Context, tournamentID string) ([]model.RankingSnapshot, error) {
	var snaps []model.RankingSnapshot
	if s.lookup(ctx, rankingKey(tournamentID), &snaps) {
		return snaps, nil
	}

	snaps, err := s.primary.LatestRankingSnapshots(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, rankingKey(tournamentID), snaps)
	return snaps, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) LoadParticipantSnapshots(ctx context.Context, tournamentID string) ([]model.Account, error) {
	return s.primary.LoadParticipantSnapshots(ctx, tournamentID)
}

func (s *CachedStore) TradeRecordsByAccount(ctx context.Context, accountID string) ([]model.TradeRecord, error) {
	return s.primary.TradeRecordsByAccount(ctx, accountID)
}

// --- Cache helpers ---

// cache stores v under key, replacing any cached value. Writers only.
func (s *CachedStore) cache(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, s.ttl).Err()
}

// fill stores v under key after a cache miss unless a writer got there
// first.
func (s *CachedStore) fill(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.SetNX(ctx, key, data, s.ttl)
	}
}

func (s *CachedStore) lookup(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func accountKey(id string) string    { return fmt.Sprintf("account:%s", id) }
func tournamentKey(id string) string { return fmt.Sprintf("tournament:%s", id) }
func rankingKey(id string) string    { return fmt.Sprintf("ranking:%s", id) }
