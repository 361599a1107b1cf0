// Package trade runs orders through pricing, validation and the ledger,
// persists the result, and exposes it over HTTP and WebSocket.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/advisor"
	"github.com/investv3/trading-engine/internal/metrics"
	"github.com/investv3/trading-engine/internal/model"
	"github.com/investv3/trading-engine/internal/order"
	"github.com/investv3/trading-engine/internal/portfolio"
	"github.com/investv3/trading-engine/internal/position"
	"github.com/investv3/trading-engine/internal/price"
	"github.com/investv3/trading-engine/internal/ranking"
	"github.com/investv3/trading-engine/internal/store"
	"github.com/investv3/trading-engine/internal/symbol"
)

// ErrInvalidRequest is returned for malformed account or tournament
// requests. Order problems are reported as *order.Rejection instead.
var ErrInvalidRequest = errors.New("trade: invalid request")

// Execution is the result of an executed order.
type Execution struct {
	Trade     model.TradeRecord   `json:"trade"`
	Account   model.Account       `json:"account"`
	Valuation portfolio.Valuation `json:"valuation"`
	Advice    *advisor.Advice     `json:"advice,omitempty"`
}

// Preview is the outcome of validating an order without executing it.
type Preview struct {
	Order      model.OrderRequest  `json:"order"`
	Price      decimal.Decimal     `json:"price"`
	Fees       *model.FeeBreakdown `json:"fees,omitempty"`
	Advice     *advisor.Advice     `json:"advice,omitempty"`
	Rejection  *order.Rejection    `json:"rejection,omitempty"`
	Executable bool                `json:"executable"`
}

// Executor is the trade executor: a synchronous fill-or-reject engine.
// Orders for the same account run one at a time in submission order.
type Executor struct {
	store     store.Store
	feed      price.Feed
	validator *order.Validator
	hub       Broadcaster
	locks     *accountLocks
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	defaultCash decimal.Decimal
}

// Option configures an Executor.
type Option func(*Executor)

// WithBroadcaster publishes trade and ranking events to b.
func WithBroadcaster(b Broadcaster) Option {
	return func(e *Executor) { e.hub = b }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithIDGenerator replaces the UUID generator used for new entities.
func WithIDGenerator(gen func() string) Option {
	return func(e *Executor) { e.newID = gen }
}

// WithDefaultInitialCash sets the starting cash for accounts opened
// without an explicit amount outside a tournament.
func WithDefaultInitialCash(cash decimal.Decimal) Option {
	return func(e *Executor) { e.defaultCash = cash }
}

// NewExecutor creates an executor over its storage and price collaborators.
func NewExecutor(st store.Store, feed price.Feed, rules order.Rules, opts ...Option) *Executor {
	e := &Executor{
		store:       st,
		feed:        feed,
		validator:   order.NewValidator(rules),
		locks:       newAccountLocks(),
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
		defaultCash: decimal.NewFromInt(1000000),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Advisor returns the sell advisor used during validation.
func (e *Executor) Advisor() *advisor.Advisor {
	return e.validator.Advisor()
}

// Submit executes req or rejects it. Rejections are *order.Rejection;
// price.ErrPriceUnavailable, store errors and position.ErrInvariant are
// returned as is. The requested quantity is never changed: a sell that
// exceeds holdings is rejected with advice, and only a new submission
// with the advised quantity trades a different amount.
//
// ctx bounds the wait for the account and the lookups before validation;
// once an order is validated it runs to completion.
func (e *Executor) Submit(ctx context.Context, req model.OrderRequest) (*Execution, error) {
	start := time.Now()
	exec, err := e.submit(ctx, req)

	outcome := "executed"
	switch {
	case err == nil:
	case isRejection(err):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	metrics.TradeLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return exec, err
}

func (e *Executor) submit(ctx context.Context, req model.OrderRequest) (*Execution, error) {
	release, err := e.locks.acquire(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	defer release()

	// The account is read from the source of truth, not a cache: it is
	// the base the trade is applied to and written back from.
	in, err := e.prepare(ctx, store.SourceOfTruth(e.store), req)
	if err != nil {
		return nil, err
	}

	v, err := e.validator.Validate(in)
	if err != nil {
		e.logRejection(req, err)
		return nil, err
	}

	// Validated: from here on the trade is not abandoned for a cancelled
	// caller.
	ctx = context.WithoutCancel(ctx)
	acct := in.Account

	rec := model.TradeRecord{
		ID:           e.newID(),
		AccountID:    acct.ID,
		TournamentID: acct.TournamentID,
		Symbol:       v.Order.Symbol,
		Side:         v.Order.Side,
		Type:         v.Order.Type,
		Quantity:     v.Order.Quantity,
		Price:        v.Price,
		Notional:     v.Fees.Notional,
		Fee:          v.Fees.Fee,
		Tax:          v.Fees.Tax,
		NetAmount:    v.Fees.NetAmount,
		Timestamp:    in.Now,
	}

	next, gross, err := portfolio.ApplyTrade(acct, rec)
	if err != nil {
		e.logInvariant(rec, err)
		return nil, err
	}
	if rec.Side == model.SideSell {
		realized := gross.Sub(rec.Fee).Sub(rec.Tax)
		rec.RealizedGainLoss = &realized
	}

	if err := store.Commit(ctx, e.store, acct, next, rec); err != nil {
		if errors.Is(err, store.ErrReconcile) {
			e.logger.Error("trade compensation failed",
				"trade_id", rec.ID, "account", rec.AccountID, "err", err)
		}
		return nil, fmt.Errorf("commit trade %s: %w", rec.ID, err)
	}

	metrics.TradesTotal.WithLabelValues(rec.Side.String()).Inc()
	metrics.TradedNotional.WithLabelValues(rec.Side.String()).Add(rec.Notional.InexactFloat64())
	metrics.FeesCollected.WithLabelValues("fee").Add(rec.Fee.InexactFloat64())
	metrics.FeesCollected.WithLabelValues("tax").Add(rec.Tax.InexactFloat64())

	attrs := []any{
		"trade_id", rec.ID,
		"account", rec.AccountID,
		"symbol", rec.Symbol,
		"side", rec.Side.String(),
		"qty", rec.Quantity,
		"price", rec.Price.String(),
		"fee", rec.Fee.String(),
		"tax", rec.Tax.String(),
		"cash", next.CashBalance.String(),
	}
	if rec.RealizedGainLoss != nil {
		attrs = append(attrs, "realized", rec.RealizedGainLoss.String())
	}
	e.logger.Info("trade executed", attrs...)

	if e.hub != nil {
		e.hub.Broadcast(WSMessage{
			Type:         MsgTradeExecuted,
			TradeID:      rec.ID,
			AccountID:    rec.AccountID,
			TournamentID: rec.TournamentID,
			Symbol:       rec.Symbol,
			Side:         rec.Side.String(),
			Quantity:     rec.Quantity,
			Price:        rec.Price.String(),
		})
	}

	return &Execution{
		Trade:     rec,
		Account:   next,
		Valuation: portfolio.Value(next),
		Advice:    v.Advice,
	}, nil
}

// Preview prices and validates req without changing anything. Rejections
// are reported in the result, not as an error.
func (e *Executor) Preview(ctx context.Context, req model.OrderRequest) (Preview, error) {
	in, err := e.prepare(ctx, e.store, req)
	if err != nil {
		return Preview{}, err
	}

	out := Preview{Order: order.Normalize(req), Price: in.MarketPrice}
	v, err := e.validator.Validate(in)
	if err != nil {
		rej, ok := order.AsRejection(err)
		if !ok {
			return Preview{}, err
		}
		out.Rejection = rej
		out.Advice = rej.Advice
		return out, nil
	}

	out.Order = v.Order
	out.Price = v.Price
	out.Fees = &v.Fees
	out.Advice = v.Advice
	out.Executable = true
	return out, nil
}

// prepare loads everything validation needs from st.
func (e *Executor) prepare(ctx context.Context, st store.Store, req model.OrderRequest) (order.Input, error) {
	acct, err := st.LoadAccount(ctx, req.AccountID)
	if err != nil {
		return order.Input{}, err
	}

	in := order.Input{Order: req, Account: acct, Now: e.now()}

	if acct.TournamentID != "" {
		t, err := st.GetTournament(ctx, acct.TournamentID)
		if err != nil {
			return order.Input{}, fmt.Errorf("tournament of account %s: %w", acct.ID, err)
		}
		in.Tournament = &t
	}

	// An unparseable symbol is left for the validator to reject.
	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		return in, nil
	}

	px, err := e.feed.CurrentPrice(ctx, sym)
	if err != nil {
		return order.Input{}, err
	}
	in.MarketPrice = px

	pos, err := st.LoadPosition(ctx, acct.ID, sym)
	if err != nil {
		return order.Input{}, err
	}
	in.Position = pos
	return in, nil
}

func (e *Executor) logRejection(req model.OrderRequest, err error) {
	rej, ok := order.AsRejection(err)
	if !ok {
		return
	}
	metrics.RejectionsTotal.WithLabelValues(string(rej.Reason)).Inc()
	e.logger.Info("order rejected",
		"account", req.AccountID,
		"symbol", req.Symbol,
		"side", req.Side.String(),
		"qty", req.Quantity,
		"reason", string(rej.Reason),
		"message", rej.Message,
	)
}

func (e *Executor) logInvariant(rec model.TradeRecord, err error) {
	if !errors.Is(err, position.ErrInvariant) {
		return
	}
	metrics.InvariantViolations.Inc()
	e.logger.Error("invariant violation",
		"account", rec.AccountID,
		"symbol", rec.Symbol,
		"side", rec.Side.String(),
		"qty", rec.Quantity,
		"err", err,
	)
}

func isRejection(err error) bool {
	_, ok := order.AsRejection(err)
	return ok
}

// --- Accounts ---

// OpenAccount creates an account for userID. With a tournament, the
// tournament must not be finished and initialCash defaults to the
// tournament's; otherwise it defaults to the configured amount.
func (e *Executor) OpenAccount(ctx context.Context, userID, tournamentID string, initialCash decimal.Decimal) (model.Account, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.Account{}, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if initialCash.IsNegative() {
		return model.Account{}, fmt.Errorf("%w: initial cash must be positive", ErrInvalidRequest)
	}

	cash := initialCash
	if tournamentID != "" {
		t, err := e.store.GetTournament(ctx, tournamentID)
		if err != nil {
			return model.Account{}, err
		}
		if t.Status == model.TournamentFinished {
			return model.Account{}, fmt.Errorf("%w: tournament %s has finished", order.ErrTournamentNotActive, t.ID)
		}
		if cash.IsZero() {
			cash = t.InitialCash
		}
	}
	if cash.IsZero() {
		cash = e.defaultCash
	}
	if !cash.IsPositive() {
		return model.Account{}, fmt.Errorf("%w: initial cash must be positive", ErrInvalidRequest)
	}

	now := e.now()
	acct := model.Account{
		ID:           e.newID(),
		UserID:       userID,
		TournamentID: tournamentID,
		CashBalance:  cash,
		InitialCash:  cash,
		Positions:    map[string]model.Position{},
		CreatedAt:    now,
		LastUpdated:  now,
	}
	if err := e.store.CreateAccount(ctx, acct); err != nil {
		return model.Account{}, err
	}

	e.logger.Info("account opened",
		"account", acct.ID, "user", userID, "tournament", tournamentID, "cash", cash.String())
	return acct, nil
}

// Account returns an account with its valuation at stored prices.
func (e *Executor) Account(ctx context.Context, id string) (model.Account, portfolio.Valuation, error) {
	acct, err := e.store.LoadAccount(ctx, id)
	if err != nil {
		return model.Account{}, portfolio.Valuation{}, err
	}
	return acct, portfolio.Value(acct), nil
}

// Trades returns an account's trade records in execution order.
func (e *Executor) Trades(ctx context.Context, accountID string) ([]model.TradeRecord, error) {
	if _, err := e.store.LoadAccount(ctx, accountID); err != nil {
		return nil, err
	}
	recs, err := e.store.TradeRecordsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []model.TradeRecord{}
	}
	return recs, nil
}

// Statistics summarizes an account's trade history.
func (e *Executor) Statistics(ctx context.Context, accountID string) (portfolio.Stats, error) {
	recs, err := e.Trades(ctx, accountID)
	if err != nil {
		return portfolio.Stats{}, err
	}
	return portfolio.Statistics(recs), nil
}

// --- Tournaments and rankings ---

// CreateTournament validates and stores t, assigning an ID when empty.
func (e *Executor) CreateTournament(ctx context.Context, t model.Tournament) (model.Tournament, error) {
	t.Name = strings.TrimSpace(t.Name)
	switch {
	case t.Name == "":
		return model.Tournament{}, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case t.StartsAt.IsZero() || t.EndsAt.IsZero() || !t.EndsAt.After(t.StartsAt):
		return model.Tournament{}, fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidRequest)
	case t.MaxSingleStockRate.IsNegative() || t.MaxSingleStockRate.GreaterThan(decimal.NewFromInt(100)):
		return model.Tournament{}, fmt.Errorf("%w: max_single_stock_rate must be between 0 and 100", ErrInvalidRequest)
	case t.InitialCash.IsNegative():
		return model.Tournament{}, fmt.Errorf("%w: initial_cash must be positive", ErrInvalidRequest)
	}

	switch t.Status {
	case "":
		t.Status = model.TournamentUpcoming
	case model.TournamentUpcoming, model.TournamentOngoing, model.TournamentFinished:
	default:
		return model.Tournament{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, t.Status)
	}
	if t.InitialCash.IsZero() {
		t.InitialCash = e.defaultCash
	}
	if t.ID == "" {
		t.ID = e.newID()
	}
	t.CreatedAt = e.now()

	if err := e.store.CreateTournament(ctx, t); err != nil {
		return model.Tournament{}, err
	}
	e.logger.Info("tournament created", "tournament", t.ID, "name", t.Name, "status", string(t.Status))
	return t, nil
}

// Tournament returns a stored tournament.
func (e *Executor) Tournament(ctx context.Context, id string) (model.Tournament, error) {
	return e.store.GetTournament(ctx, id)
}

// ComputeRanking runs a ranking pass: participants are valued at current
// feed prices (stored prices where the feed has none), ranked against
// the previous pass, and the new snapshots are appended.
func (e *Executor) ComputeRanking(ctx context.Context, tournamentID string) ([]model.RankingSnapshot, error) {
	if _, err := e.store.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	accounts, err := e.store.LoadParticipantSnapshots(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	asOf := e.now()
	prices := e.currentPrices(ctx, accounts)
	marked := make([]model.Account, len(accounts))
	for i, a := range accounts {
		marked[i] = portfolio.MarkToMarket(a, prices, asOf)
	}

	previous, err := e.store.LatestRankingSnapshots(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("load previous ranking: %w", err)
	}

	snaps := ranking.Rank(marked, previous, tournamentID, asOf)
	if err := e.store.AppendRankingSnapshots(ctx, snaps); err != nil {
		return nil, fmt.Errorf("store ranking: %w", err)
	}

	metrics.RankingPasses.Inc()
	e.logger.Info("ranking computed", "tournament", tournamentID, "participants", len(snaps))

	if e.hub != nil {
		e.hub.Broadcast(WSMessage{
			Type:         MsgRankingUpdated,
			TournamentID: tournamentID,
			Rankings:     snaps,
		})
	}
	return snaps, nil
}

// LatestRanking returns the most recent stored pass.
func (e *Executor) LatestRanking(ctx context.Context, tournamentID string) ([]model.RankingSnapshot, error) {
	if _, err := e.store.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return e.store.LatestRankingSnapshots(ctx, tournamentID)
}

func (e *Executor) currentPrices(ctx context.Context, accounts []model.Account) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	for _, a := range accounts {
		for sym := range a.Positions {
			if _, done := prices[sym]; done {
				continue
			}
			px, err := e.feed.CurrentPrice(ctx, sym)
			if err != nil {
				e.logger.Debug("ranking uses stored price", "symbol", sym, "err", err)
				px = decimal.Zero // MarkToMarket keeps the stored price
			}
			prices[sym] = px
		}
	}
	return prices
}
