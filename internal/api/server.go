// Package api provides the HTTP surface consumed by the chat layer and
// operators.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/okx-folio/internal/circuitbreaker"
	"github.com/okx-folio/internal/logging"
	"github.com/okx-folio/internal/models"
)

// UserStore is the user persistence surface the API needs
type UserStore interface {
	Upsert(ctx context.Context, externalID int64, username string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID int64) (*models.User, error)
}

// WalletStore is the wallet persistence surface the API needs
type WalletStore interface {
	Add(ctx context.Context, wallet *models.Wallet) error
	Remove(ctx context.Context, userID int64, address string, chainID int) error
	ListByUser(ctx context.Context, userID int64) ([]models.Wallet, error)
}

// Analytics is the read side of the portfolio service
type Analytics interface {
	Snapshot(ctx context.Context, externalID int64) (*models.PortfolioSnapshot, error)
	Diversification(ctx context.Context, externalID int64) (map[string]decimal.Decimal, error)
	ROI(ctx context.Context, externalID int64, windowDays int) (float64, error)
	SuggestRebalance(ctx context.Context, externalID int64, target map[string]decimal.Decimal) ([]models.RebalanceTrade, error)
}

// Syncer refreshes one user's holdings on demand
type Syncer interface {
	Sync(ctx context.Context, externalID int64) bool
}

// QuoteSource fetches swap quotes
type QuoteSource interface {
	GetQuote(ctx context.Context, fromToken, toToken, amount string, chainID int) (*models.Quote, error)
}

// TokenSource resolves symbols to canonical tokens
type TokenSource interface {
	Resolve(ctx context.Context, symbol string) (*models.Token, error)
}

// HistorySource reads recorded valuation observations
type HistorySource interface {
	Series(ctx context.Context, externalID int64, since time.Time) ([]models.ValuationPoint, error)
}

// BreakerStats exposes circuit breaker state for the ops endpoint
type BreakerStats interface {
	Snapshots() []circuitbreaker.Stats
}

// Server is the HTTP API server
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	config     *ServerConfig

	users     UserStore
	wallets   WalletStore
	analytics Analytics
	syncer    Syncer
	quotes    QuoteSource
	tokens    TokenSource
	history   HistorySource
	breaker   BreakerStats
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Deps bundles the server's collaborators. history may be nil when
// valuation recording is disabled.
type Deps struct {
	Users     UserStore
	Wallets   WalletStore
	Analytics Analytics
	Syncer    Syncer
	Quotes    QuoteSource
	Tokens    TokenSource
	History   HistorySource
	Breaker   BreakerStats
}

// NewServer creates a new API server instance
func NewServer(config *ServerConfig, deps Deps) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		config:    config,
		users:     deps.Users,
		wallets:   deps.Wallets,
		analytics: deps.Analytics,
		syncer:    deps.Syncer,
		quotes:    deps.Quotes,
		tokens:    deps.Tokens,
		history:   deps.History,
		breaker:   deps.Breaker,
	}

	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	s.router.Use(CorrelationMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)

	s.setupRoutes()

	readTimeout := s.config.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := s.config.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}
	idleTimeout := s.config.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = time.Minute
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// User and wallet management
	api.HandleFunc("/users", s.handleUpsertUser).Methods("POST")
	api.HandleFunc("/users/{id}/wallets", s.handleAddWallet).Methods("POST")
	api.HandleFunc("/users/{id}/wallets", s.handleListWallets).Methods("GET")
	api.HandleFunc("/users/{id}/wallets/{address}", s.handleRemoveWallet).Methods("DELETE")

	// Portfolio reads and sync
	api.HandleFunc("/users/{id}/portfolio", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/users/{id}/portfolio/diversification", s.handleDiversification).Methods("GET")
	api.HandleFunc("/users/{id}/portfolio/roi", s.handleROI).Methods("GET")
	api.HandleFunc("/users/{id}/portfolio/rebalance", s.handleRebalance).Methods("POST")
	api.HandleFunc("/users/{id}/portfolio/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/users/{id}/sync", s.handleSync).Methods("POST")

	// Market data
	api.HandleFunc("/quote", s.handleQuote).Methods("GET")

	// Operations
	s.router.HandleFunc("/ops/circuit-breakers", s.handleBreakerStats).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "okx-folio",
	})
}

// Router returns the configured router. Tests drive it directly.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
