// Package metrics provides Prometheus instrumentation for the trading engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	// TradeLatency observes Submit latency, partitioned by outcome.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_trade_latency_seconds",
		Help:    "Order submission latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// RejectionsTotal counts rejected orders by reason.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_rejections_total",
		Help: "Orders rejected, by reason",
	}, []string{"reason"})

	// InvariantViolations counts aborted trades caused by internal
	// consistency failures.
	InvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_invariant_violations_total",
		Help: "Trades aborted by an invariant violation",
	})

	// TradedNotional tracks cumulative notional per side.
	TradedNotional = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_traded_notional_total",
		Help: "Cumulative traded notional in account currency",
	}, []string{"side"})

	// FeesCollected tracks cumulative fees and taxes.
	FeesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_fees_total",
		Help: "Cumulative broker fees and transaction tax",
	}, []string{"kind"})

	// RankingPasses counts completed ranking passes.
	RankingPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_ranking_passes_total",
		Help: "Completed ranking passes",
	})

	// AccountLockWaiters tracks submissions queued behind another trade on
	// the same account.
	AccountLockWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_account_lock_waiters",
		Help: "Orders waiting for their account's previous order to finish",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start).Seconds()

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern uses the matched chi pattern for the path label to avoid
// one series per account ID.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
