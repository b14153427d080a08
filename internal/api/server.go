// Package api exposes the DAO clients over HTTP. Reads work without a
// wallet; mutating routes act as the connected session account.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"soroban-dao/internal/contracts"
	"soroban-dao/internal/reporting"
	"soroban-dao/internal/session"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/storage"
	"soroban-dao/internal/view"
)

// Session is the wallet session driven by the API.
type Session interface {
	session.View
	CheckInstalled(ctx context.Context) bool
	Connect(ctx context.Context) error
	Disconnect()
}

// Options configures a Server.
type Options struct {
	RPC      soroban.RPCClient
	Clients  *contracts.Clients
	Session  Session
	Journal  storage.OperationJournal // optional
	Activity storage.ActivityStore    // optional
	Reports  *reporting.Generator     // optional
	Now      func() time.Time
	Logger   *log.Logger
}

// Server routes HTTP requests to the contract clients.
type Server struct {
	rpc      soroban.RPCClient
	clients  *contracts.Clients
	session  Session
	journal  storage.OperationJournal
	activity storage.ActivityStore
	reports  *reporting.Generator
	loader   *view.Loader
	now      func() time.Time
	logger   *log.Logger
	router   *chi.Mux
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		rpc:      opts.RPC,
		clients:  opts.Clients,
		session:  opts.Session,
		journal:  opts.Journal,
		activity: opts.Activity,
		reports:  opts.Reports,
		loader: &view.Loader{
			Treasury:   opts.Clients.Treasury,
			Governance: opts.Clients.Governance,
			Session:    opts.Session,
		},
		now:    now,
		logger: logger,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Post("/session/connect", s.handleConnect)
		r.Post("/session/disconnect", s.handleDisconnect)

		r.Get("/dashboard", s.handleDashboard)

		r.Route("/treasury", func(r chi.Router) {
			r.Get("/", s.handleTreasuryPage)
			r.Get("/balance", s.handleBalance)
			r.Get("/signers", s.handleSigners)
			r.Get("/transactions/{id}", s.handleGetTransaction)
			r.Post("/deposit", s.handleDeposit)
			r.Post("/withdrawals", s.handleProposeWithdrawal)
			r.Post("/transactions/{id}/approve", s.handleApprove)
			r.Post("/transactions/{id}/execute", s.handleExecute)
		})

		r.Route("/governance", func(r chi.Router) {
			r.Get("/members", s.handleMembers)
			r.Get("/proposals", s.handleProposals)
			r.Get("/proposals/{id}", s.handleProposalDetail)
			r.Post("/proposals", s.handleCreateProposal)
			r.Post("/proposals/{id}/vote", s.handleVote)
			r.Post("/proposals/{id}/finalize", s.handleFinalize)
			r.Post("/proposals/{id}/execute", s.handleExecuteProposal)
		})

		r.Route("/vault", func(r chi.Router) {
			r.Get("/stats", s.handleVaultStats)
			r.Get("/locks/{id}", s.handleGetLock)
			r.Get("/vestings/{id}", s.handleGetVesting)
			r.Post("/locks", s.handleLockTokens)
			r.Post("/locks/{id}/claim", s.handleClaim)
			r.Post("/locks/{id}/approve-emergency", s.handleApproveEmergency)
			r.Post("/locks/{id}/emergency-unlock", s.handleEmergencyUnlock)
			r.Post("/vestings/{id}/claim", s.handleClaimVested)
		})

		r.Get("/journal", s.handleJournal)
		r.Get("/activity", s.handleActivity)
		r.Get("/reports/{format}", s.handleReport)
	})
}

// currentLedger returns the latest ledger, or 0 when the node cannot say.
func (s *Server) currentLedger(ctx context.Context) uint32 {
	if s.rpc == nil {
		return 0
	}
	latest, err := s.rpc.GetLatestLedger(ctx)
	if err != nil {
		s.logger.Printf("WARN: latest ledger unavailable: %v", err)
		return 0
	}
	return latest.Sequence
}
