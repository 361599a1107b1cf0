package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/investv3/trading-engine/internal/model"
	"github.com/investv3/trading-engine/internal/order"
	"github.com/investv3/trading-engine/internal/portfolio"
	"github.com/investv3/trading-engine/internal/position"
	"github.com/investv3/trading-engine/internal/price"
	"github.com/investv3/trading-engine/internal/store"
)

// Handler exposes an Executor over HTTP.
type Handler struct {
	exec *Executor
}

// NewHandler creates the HTTP layer for exec.
func NewHandler(exec *Executor) *Handler {
	return &Handler{exec: exec}
}

// Routes registers the API on r (mounted under /api/v1 by the server).
func (h *Handler) Routes(r chi.Router) {
	// Accounts.
	r.Post("/accounts", h.OpenAccount)
	r.Get("/accounts/{accountID}", h.GetAccount)
	r.Get("/accounts/{accountID}/trades", h.GetTrades)
	r.Get("/accounts/{accountID}/stats", h.GetStats)

	// Orders.
	r.Post("/orders", h.SubmitOrder)
	r.Post("/orders/preview", h.PreviewOrder)

	// Tournaments and leaderboards.
	r.Post("/tournaments", h.CreateTournament)
	r.Get("/tournaments/{tournamentID}", h.GetTournament)
	r.Post("/tournaments/{tournamentID}/rankings", h.ComputeRanking)
	r.Get("/tournaments/{tournamentID}/rankings", h.GetRankings)
}

// --- Request/Response types ---

// OpenAccountRequest is the JSON body for POST /accounts.
type OpenAccountRequest struct {
	UserID       string          `json:"user_id"`
	TournamentID string          `json:"tournament_id,omitempty"`
	InitialCash  decimal.Decimal `json:"initial_cash"` // 0 → tournament or service default
}

// AccountResponse is an account with its derived valuation.
type AccountResponse struct {
	Account   model.Account       `json:"account"`
	Valuation portfolio.Valuation `json:"valuation"`
}

// --- HTTP Handlers ---

// OpenAccount handles POST /api/v1/accounts
func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	acct, err := h.exec.OpenAccount(r.Context(), req.UserID, req.TournamentID, req.InitialCash)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AccountResponse{Account: acct, Valuation: portfolio.Value(acct)})
}

// GetAccount handles GET /api/v1/accounts/{accountID}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, val, err := h.exec.Account(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Account: acct, Valuation: val})
}

// GetTrades handles GET /api/v1/accounts/{accountID}/trades
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	recs, err := h.exec.Trades(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetStats handles GET /api/v1/accounts/{accountID}/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.exec.Statistics(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SubmitOrder handles POST /api/v1/orders
// Fill-or-reject: 200 with the execution, or 422 with the rejection.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		writeError(w, "account_id is required", http.StatusBadRequest)
		return
	}

	exec, err := h.exec.Submit(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// PreviewOrder handles POST /api/v1/orders/preview
func (h *Handler) PreviewOrder(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		writeError(w, "account_id is required", http.StatusBadRequest)
		return
	}

	p, err := h.exec.Preview(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateTournament handles POST /api/v1/tournaments
func (h *Handler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var req model.Tournament
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := h.exec.CreateTournament(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTournament handles GET /api/v1/tournaments/{tournamentID}
func (h *Handler) GetTournament(w http.ResponseWriter, r *http.Request) {
	t, err := h.exec.Tournament(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ComputeRanking handles POST /api/v1/tournaments/{tournamentID}/rankings
func (h *Handler) ComputeRanking(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.exec.ComputeRanking(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if snaps == nil {
		snaps = []model.RankingSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// GetRankings handles GET /api/v1/tournaments/{tournamentID}/rankings
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.exec.LatestRanking(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// writeFailure maps executor errors to HTTP responses.
func writeFailure(w http.ResponseWriter, err error) {
	if rej, ok := order.AsRejection(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, rej)
		return
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, order.ErrTournamentNotActive):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, price.ErrPriceUnavailable):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, "request cancelled before execution", http.StatusGatewayTimeout)
	case errors.Is(err, position.ErrInvariant), errors.Is(err, store.ErrReconcile):
		writeError(w, "internal error: trade aborted", http.StatusInternalServerError)
	default:
		slog.Error("request failed", "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
