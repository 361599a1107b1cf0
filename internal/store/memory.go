package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/investv3/trading-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]model.Account
	records     []model.TradeRecord
	recordIDs   map[string]bool
	tournaments map[string]model.Tournament
	rankings    map[string][][]model.RankingSnapshot // tournament → passes
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]model.Account),
		recordIDs:   make(map[string]bool),
		tournaments: make(map[string]model.Tournament),
		rankings:    make(map[string][][]model.RankingSnapshot),
	}
}

var _ TradeCommitter = (*MemoryStore)(nil)

func (s *MemoryStore) CreateAccount(_ context.Context, acct model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acct.ID]; ok {
		return fmt.Errorf("%w: account %s already exists", ErrConflict, acct.ID)
	}
	for _, existing := range s.accounts {
		if existing.UserID == acct.UserID && existing.TournamentID == acct.TournamentID {
			return fmt.Errorf("%w: user %s already has account %s", ErrConflict, acct.UserID, existing.ID)
		}
	}

	// Store a copy to avoid external mutation.
	s.accounts[acct.ID] = acct.Clone()
	return nil
}

func (s *MemoryStore) LoadAccount(_ context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	return a.Clone(), nil
}

func (s *MemoryStore) LoadPosition(_ context.Context, accountID, symbol string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}
	p, ok := a.Positions[symbol]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) SaveAccount(_ context.Context, acct model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(acct)
}

func (s *MemoryStore) saveLocked(acct model.Account) error {
	if _, ok := s.accounts[acct.ID]; !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, acct.ID)
	}
	s.accounts[acct.ID] = acct.Clone()
	return nil
}

func (s *MemoryStore) LoadParticipantSnapshots(_ context.Context, tournamentID string) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Account
	for _, a := range s.accounts {
		if a.TournamentID == tournamentID {
			result = append(result, a.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) AppendTradeRecord(_ context.Context, rec model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(rec)
}

func (s *MemoryStore) appendLocked(rec model.TradeRecord) error {
	if s.recordIDs[rec.ID] {
		return fmt.Errorf("%w: trade %s already recorded", ErrConflict, rec.ID)
	}
	s.recordIDs[rec.ID] = true
	s.records = append(s.records, rec)
	return nil
}

// CommitTrade saves acct and appends rec under one lock.
func (s *MemoryStore) CommitTrade(_ context.Context, acct model.Account, rec model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acct.ID]; !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, acct.ID)
	}
	if err := s.appendLocked(rec); err != nil {
		return err
	}
	return s.saveLocked(acct)
}

func (s *MemoryStore) TradeRecordsByAccount(_ context.Context, accountID string) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeRecord
	for _, r := range s.records {
		if r.AccountID == accountID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *MemoryStore) CreateTournament(_ context.Context, t model.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tournaments[t.ID]; ok {
		return fmt.Errorf("%w: tournament %s already exists", ErrConflict, t.ID)
	}
	s.tournaments[t.ID] = t
	return nil
}

func (s *MemoryStore) GetTournament(_ context.Context, id string) (model.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tournaments[id]
	if !ok {
		return model.Tournament{}, fmt.Errorf("%w: tournament %s", ErrNotFound, id)
	}
	return t, nil
}

func (s *MemoryStore) AppendRankingSnapshots(_ context.Context, snaps []model.RankingSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tid := snaps[0].TournamentID
	pass := make([]model.RankingSnapshot, len(snaps))
	copy(pass, snaps)
	s.rankings[tid] = append(s.rankings[tid], pass)
	return nil
}

func (s *MemoryStore) LatestRankingSnapshots(_ context.Context, tournamentID string) ([]model.RankingSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	passes := s.rankings[tournamentID]
	if len(passes) == 0 {
		return []model.RankingSnapshot{}, nil
	}
	last := passes[len(passes)-1]
	out := make([]model.RankingSnapshot, len(last))
	copy(out, last)
	return out, nil
}

// RankingHistory returns every stored pass for a tournament, oldest first.
func (s *MemoryStore) RankingHistory(tournamentID string) [][]model.RankingSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]model.RankingSnapshot, len(s.rankings[tournamentID]))
	copy(out, s.rankings[tournamentID])
	return out
}
