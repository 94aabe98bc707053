package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moxieprotocol/indexer"
	"moxieprotocol/native/bondingcurve"
	"moxieprotocol/native/staking"
	"moxieprotocol/native/subjectfactory"
	"moxieprotocol/native/vesting"
	"moxieprotocol/protocol"
)

// Backend is the read side of the protocol served over HTTP.
type Backend interface {
	Addresses() protocol.Addresses
	CurveState(subject common.Address) (*bondingcurve.CurveState, error)
	CurveFees() (*protocol.CurveFees, error)
	QuoteBuy(subject common.Address, shares *big.Int) (*bondingcurve.BuyQuote, error)
	QuoteSell(subject common.Address, sell *big.Int) (*bondingcurve.SellQuote, error)
	VaultBalance(subjectToken common.Address) (*big.Int, error)
	SubjectToken(subject common.Address) (common.Address, bool, error)
	OnboardingRecord(subject common.Address) (*subjectfactory.Subject, error)
	TokenBalance(tok, holder common.Address) (*big.Int, error)
	LockInfo(index uint64) (*staking.Lock, error)
	VestingWallet(addr common.Address) (*protocol.WalletView, error)
	RewardsAccount(account common.Address) (*protocol.RewardsAccount, error)
}

// ServerConfig configures the query server.
type ServerConfig struct {
	RateLimit       RateLimit
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	// Events feeds /v1/events. Nil disables the stream.
	Events *EventHub
	// Trades serves curve trade history. Nil disables it.
	Trades TradeSource
}

// TradeSource is the trade history store, normally *indexer.Indexer.
type TradeSource interface {
	Trades(ctx context.Context, subject common.Address, limit int) ([]indexer.Trade, error)
}

// Server exposes protocol state accessors and metrics over HTTP.
type Server struct {
	backend Backend
	cfg     ServerConfig
	logger  *slog.Logger
	limiter *RateLimiter
}

func NewServer(backend Backend, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rpc")
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		limiter: NewRateLimiter(cfg.RateLimit, logger),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v chi.Router) {
		v.Use(s.limiter.Middleware("v1"))
		v.With(observe("protocol", "addresses")).Get("/addresses", s.handleAddresses)
		v.Route("/curve", func(c chi.Router) {
			c.With(observe("curve", "fees")).Get("/fees", s.handleCurveFees)
			c.With(observe("curve", "state")).Get("/{subject}", s.handleCurveState)
			c.With(observe("curve", "quoteBuy")).Get("/{subject}/quote/buy", s.handleQuoteBuy)
			c.With(observe("curve", "quoteSell")).Get("/{subject}/quote/sell", s.handleQuoteSell)
			c.With(observe("curve", "trades")).Get("/{subject}/trades", s.handleTrades)
		})
		v.With(observe("factory", "subject")).Get("/subjects/{subject}", s.handleSubject)
		v.With(observe("vault", "balance")).Get("/vault/{token}", s.handleVaultBalance)
		v.With(observe("token", "balance")).Get("/tokens/{token}/balances/{holder}", s.handleTokenBalance)
		v.With(observe("staking", "lock")).Get("/staking/locks/{index}", s.handleLock)
		v.With(observe("vesting", "wallet")).Get("/vesting/wallets/{wallet}", s.handleWallet)
		v.With(observe("rewards", "account")).Get("/rewards/{account}", s.handleRewards)
		v.Get("/events", s.handleEvents)
	})
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.serveListener(ctx, ln)
}

func (s *Server) serveListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      otelhttp.NewHandler(s.Handler(), "moxied.rpc"),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("query API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeBackendError maps engine errors onto HTTP statuses.
func writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bondingcurve.ErrSubjectNotInitialized),
		errors.Is(err, staking.ErrInvalidIndex),
		errors.Is(err, vesting.ErrUnknownWallet):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bondingcurve.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
