package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
)

//go:embed schema.sql
var schema string

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ TradeCommitter = (*PostgresStore)(nil)

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a model.Account) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO accounts (id, user_id, tournament_id, cash_balance, initial_cash, created_at, last_updated)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7)`,
			a.ID, a.UserID, a.TournamentID,
			a.CashBalance.String(), a.InitialCash.String(),
			a.CreatedAt, a.LastUpdated,
		)
		if err != nil {
			return mapError(err, "create account "+a.ID)
		}
		return insertPositions(ctx, tx, a)
	})
}

func (s *PostgresStore) LoadAccount(ctx context.Context, id string) (model.Account, error) {
	return loadAccount(ctx, s.pool, id)
}

func loadAccount(ctx context.Context, q querier, id string) (model.Account, error) {
	var a model.Account
	var cash, initial string

	err := q.QueryRow(ctx,
		`SELECT id, user_id, tournament_id, cash_balance::TEXT, initial_cash::TEXT, created_at, last_updated
		 FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.UserID, &a.TournamentID, &cash, &initial, &a.CreatedAt, &a.LastUpdated)
	if err != nil {
		return model.Account{}, mapError(err, "get account "+id)
	}
	if err := decode(
		decField{"cash_balance", cash, &a.CashBalance},
		decField{"initial_cash", initial, &a.InitialCash},
	); err != nil {
		return model.Account{}, err
	}

	rows, err := q.Query(ctx,
		`SELECT account_id, symbol, quantity, average_cost::TEXT, current_price::TEXT, last_updated
		 FROM positions WHERE account_id = $1`, id)
	if err != nil {
		return model.Account{}, err
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return model.Account{}, err
	}
	a.Positions = make(map[string]model.Position, len(positions))
	for _, p := range positions {
		a.Positions[p.Symbol] = p
	}
	return a, nil
}

func (s *PostgresStore) LoadPosition(ctx context.Context, accountID, symbol string) (*model.Position, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT account_id, symbol, quantity, average_cost::TEXT, current_price::TEXT, last_updated
		 FROM positions WHERE account_id = $1 AND symbol = $2`, accountID, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil || len(positions) == 0 {
		return nil, err
	}
	return &positions[0], nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, a model.Account) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return saveAccount(ctx, tx, a)
	})
}

func saveAccount(ctx context.Context, tx pgx.Tx, a model.Account) error {
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET cash_balance = $2::NUMERIC, last_updated = $3 WHERE id = $1`,
		a.ID, a.CashBalance.String(), a.LastUpdated,
	)
	if err != nil {
		return mapError(err, "save account "+a.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s", ErrNotFound, a.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM positions WHERE account_id = $1`, a.ID); err != nil {
		return err
	}
	return insertPositions(ctx, tx, a)
}

func insertPositions(ctx context.Context, tx pgx.Tx, a model.Account) error {
	for _, p := range a.Positions {
		_, err := tx.Exec(ctx,
			`INSERT INTO positions (account_id, symbol, quantity, average_cost, current_price, last_updated)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)`,
			a.ID, p.Symbol, p.Quantity, p.AverageCost.String(), p.CurrentPrice.String(), p.LastUpdated,
		)
		if err != nil {
			return mapError(err, "save position "+p.Symbol)
		}
	}
	return nil
}

func (s *PostgresStore) LoadParticipantSnapshots(ctx context.Context, tournamentID string) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM accounts WHERE tournament_id = $1 ORDER BY id`, tournamentID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	accounts := make([]model.Account, 0, len(ids))
	for _, id := range ids {
		a, err := loadAccount(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (s *PostgresStore) AppendTradeRecord(ctx context.Context, rec model.TradeRecord) error {
	return insertTradeRecord(ctx, s.pool, rec)
}

func insertTradeRecord(ctx context.Context, q querier, r model.TradeRecord) error {
	var realized *string
	if r.RealizedGainLoss != nil {
		v := r.RealizedGainLoss.String()
		realized = &v
	}
	_, err := q.Exec(ctx,
		`INSERT INTO trade_records (id, account_id, tournament_id, symbol, side, order_type, quantity,
		                            price, notional, fee, tax, net_amount, realized_gain_loss, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11::NUMERIC,
		         $12::NUMERIC, $13::NUMERIC, $14)`,
		r.ID, r.AccountID, r.TournamentID, r.Symbol, r.Side.String(), string(r.Type), r.Quantity,
		r.Price.String(), r.Notional.String(), r.Fee.String(), r.Tax.String(), r.NetAmount.String(),
		realized, r.Timestamp,
	)
	return mapError(err, "append trade "+r.ID)
}

// CommitTrade saves acct and appends rec in one transaction.
func (s *PostgresStore) CommitTrade(ctx context.Context, acct model.Account, rec model.TradeRecord) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertTradeRecord(ctx, tx, rec); err != nil {
			return err
		}
		return saveAccount(ctx, tx, acct)
	})
}

func (s *PostgresStore) TradeRecordsByAccount(ctx context.Context, accountID string) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, tournament_id, symbol, side, order_type, quantity,
		        price::TEXT, notional::TEXT, fee::TEXT, tax::TEXT, net_amount::TEXT,
		        realized_gain_loss::TEXT, timestamp
		 FROM trade_records WHERE account_id = $1 ORDER BY seq`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

func (s *PostgresStore) CreateTournament(ctx context.Context, t model.Tournament) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tournaments (id, name, status, starts_at, ends_at, initial_cash, max_single_stock_rate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8)`,
		t.ID, t.Name, string(t.Status), t.StartsAt, t.EndsAt,
		t.InitialCash.String(), t.MaxSingleStockRate.String(), t.CreatedAt,
	)
	return mapError(err, "create tournament "+t.ID)
}

func (s *PostgresStore) GetTournament(ctx context.Context, id string) (model.Tournament, error) {
	var t model.Tournament
	var status, initial, maxRate string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status, starts_at, ends_at, initial_cash::TEXT, max_single_stock_rate::TEXT, created_at
		 FROM tournaments WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &status, &t.StartsAt, &t.EndsAt, &initial, &maxRate, &t.CreatedAt)
	if err != nil {
		return model.Tournament{}, mapError(err, "get tournament "+id)
	}
	t.Status = model.TournamentStatus(status)
	if err := decode(
		decField{"initial_cash", initial, &t.InitialCash},
		decField{"max_single_stock_rate", maxRate, &t.MaxSingleStockRate},
	); err != nil {
		return model.Tournament{}, err
	}
	return t, nil
}

func (s *PostgresStore) AppendRankingSnapshots(ctx context.Context, snaps []model.RankingSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var pass int64
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(pass), 0) + 1 FROM ranking_snapshots WHERE tournament_id = $1`,
			snaps[0].TournamentID).Scan(&pass); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, r := range snaps {
			batch.Queue(
				`INSERT INTO ranking_snapshots (tournament_id, pass, account_id, user_id, rank, previous_rank, rank_change,
				                                percentile, total_value, return_rate, as_of)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11)`,
				r.TournamentID, pass, r.AccountID, r.UserID, r.Rank, r.PreviousRank, r.RankChange,
				r.Percentile.String(), r.TotalValue.String(), r.ReturnRate.String(), r.AsOf,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return mapError(err, "append ranking snapshots")
}

func (s *PostgresStore) LatestRankingSnapshots(ctx context.Context, tournamentID string) ([]model.RankingSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tournament_id, account_id, user_id, rank, previous_rank, rank_change,
		        percentile::TEXT, total_value::TEXT, return_rate::TEXT, as_of
		 FROM ranking_snapshots
		 WHERE tournament_id = $1
		   AND pass = (SELECT MAX(pass) FROM ranking_snapshots WHERE tournament_id = $1)
		 ORDER BY rank`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := []model.RankingSnapshot{}
	for rows.Next() {
		var r model.RankingSnapshot
		var pct, total, rate string
		if err := rows.Scan(&r.TournamentID, &r.AccountID, &r.UserID, &r.Rank, &r.PreviousRank, &r.RankChange,
			&pct, &total, &rate, &r.AsOf); err != nil {
			return nil, err
		}
		if err := decode(
			decField{"percentile", pct, &r.Percentile},
			decField{"total_value", total, &r.TotalValue},
			decField{"return_rate", rate, &r.ReturnRate},
		); err != nil {
			return nil, err
		}
		snaps = append(snaps, r)
	}
	return snaps, rows.Err()
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// mapError translates pgx errors into store sentinels.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// pgxRows is the subset of pgx.Rows the scanners need.
type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPositions(rows pgxRows) ([]model.Position, error) {
	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var cost, price string
		if err := rows.Scan(&p.AccountID, &p.Symbol, &p.Quantity, &cost, &price, &p.LastUpdated); err != nil {
			return nil, err
		}
		if err := decode(
			decField{"average_cost", cost, &p.AverageCost},
			decField{"current_price", price, &p.CurrentPrice},
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func scanTradeRecords(rows pgxRows) ([]model.TradeRecord, error) {
	var records []model.TradeRecord
	for rows.Next() {
		var r model.TradeRecord
		var side, orderType, price, notional, fee, tax, net string
		var realized *string

		if err := rows.Scan(&r.ID, &r.AccountID, &r.TournamentID, &r.Symbol, &side, &orderType, &r.Quantity,
			&price, &notional, &fee, &tax, &net, &realized, &r.Timestamp); err != nil {
			return nil, err
		}
		if err := r.Side.UnmarshalText([]byte(side)); err != nil {
			return nil, err
		}
		r.Type = model.OrderType(orderType)
		if err := decode(
			decField{"price", price, &r.Price},
			decField{"notional", notional, &r.Notional},
			decField{"fee", fee, &r.Fee},
			decField{"tax", tax, &r.Tax},
			decField{"net_amount", net, &r.NetAmount},
		); err != nil {
			return nil, err
		}
		if realized != nil {
			v, err := decimal.NewFromString(*realized)
			if err != nil {
				return nil, fmt.Errorf("decode realized_gain_loss: %w", err)
			}
			r.RealizedGainLoss = &v
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type decField struct {
	name string
	raw  string
	dst  *decimal.Decimal
}

func decode(fields ...decField) error {
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return nil
}
