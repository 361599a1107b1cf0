// Package store defines the persistence interface for the trading engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/investv3/trading-engine/internal/model"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when creating an entity that already exists,
	// including a second account for the same user and tournament.
	ErrConflict = errors.New("store: conflict")

	// ErrReconcile is returned when a failed trade commit could not be
	// undone. The account must be reconciled against its trade records.
	ErrReconcile = errors.New("store: account needs reconciliation")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account.
	CreateAccount(ctx context.Context, acct model.Account) error

	// LoadAccount retrieves an account with its open positions.
	LoadAccount(ctx context.Context, id string) (model.Account, error)

	// LoadPosition returns the account's position in symbol, or nil when it
	// holds none.
	LoadPosition(ctx context.Context, accountID, symbol string) (*model.Position, error)

	// SaveAccount replaces the account's cash balance and positions.
	SaveAccount(ctx context.Context, acct model.Account) error

	// LoadParticipantSnapshots returns every account in a tournament,
	// ordered by ID.
	LoadParticipantSnapshots(ctx context.Context, tournamentID string) ([]model.Account, error)

	// --- Immutable trade log ---

	// AppendTradeRecord appends an immutable trade record.
	AppendTradeRecord(ctx context.Context, rec model.TradeRecord) error

	// TradeRecordsByAccount returns an account's trades in execution order.
	TradeRecordsByAccount(ctx context.Context, accountID string) ([]model.TradeRecord, error)

	// --- Tournaments and rankings ---

	CreateTournament(ctx context.Context, t model.Tournament) error
	GetTournament(ctx context.Context, id string) (model.Tournament, error)

	// AppendRankingSnapshots stores one ranking pass. Earlier passes are kept.
	AppendRankingSnapshots(ctx context.Context, snaps []model.RankingSnapshot) error

	// LatestRankingSnapshots returns the most recent pass for a tournament,
	// or an empty slice if it was never ranked.
	LatestRankingSnapshots(ctx context.Context, tournamentID string) ([]model.RankingSnapshot, error)
}

// TradeCommitter is implemented by stores that can persist an account
// update and its trade record in a single transaction.
type TradeCommitter interface {
	CommitTrade(ctx context.Context, acct model.Account, rec model.TradeRecord) error
}

// Layered is implemented by stores that front another store, such as a
// cache in front of the database.
type Layered interface {
	Primary() Store
}

// SourceOfTruth unwraps layered stores down to the one that owns the data.
// Reads whose result is written back (the account and position a trade is
// applied to) must come from it, never from a cache.
func SourceOfTruth(st Store) Store {
	for {
		l, ok := st.(Layered)
		if !ok {
			return st
		}
		st = l.Primary()
	}
}

// Commit persists next and rec together. Stores implementing TradeCommitter
// do so natively; otherwise the account is saved first and, if appending the
// record fails, restored to prev. If the restore also fails the returned
// error wraps ErrReconcile.
func Commit(ctx context.Context, st Store, prev, next model.Account, rec model.TradeRecord) error {
	if tc, ok := st.(TradeCommitter); ok {
		return tc.CommitTrade(ctx, next, rec)
	}

	if err := st.SaveAccount(ctx, next); err != nil {
		return fmt.Errorf("save account %s: %w", next.ID, err)
	}
	appendErr := st.AppendTradeRecord(ctx, rec)
	if appendErr == nil {
		return nil
	}

	// The caller may have given up by now; the restore must still run.
	if err := st.SaveAccount(context.WithoutCancel(ctx), prev); err != nil {
		return fmt.Errorf("%w: account %s after failed trade %s: %w",
			ErrReconcile, prev.ID, rec.ID, errors.Join(appendErr, err))
	}
	return fmt.Errorf("append trade %s: %w", rec.ID, appendErr)
}
