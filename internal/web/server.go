package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avicke/foliotrack/internal/auth"
	"github.com/avicke/foliotrack/internal/config"
	"github.com/avicke/foliotrack/internal/ledger"
	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/notify"
	"github.com/avicke/foliotrack/internal/storage"
	"github.com/avicke/foliotrack/internal/valuation"
)

type Server struct {
	httpServer *http.Server
	auth       *auth.Service
	ledger     *ledger.Ledger
	engine     *valuation.Engine
	repo       *storage.Repository
	notifier   *notify.Notifier
	config     *config.Config
	logger     *logger.Logger
}

func NewServer(
	authSvc *auth.Service,
	led *ledger.Ledger,
	engine *valuation.Engine,
	repo *storage.Repository,
	notifier *notify.Notifier,
	cfg *config.Config,
	log *logger.Logger,
) *Server {
	s := &Server{
		auth:     authSvc,
		ledger:   led,
		engine:   engine,
		repo:     repo,
		notifier: notifier,
		config:   cfg,
		logger:   log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("/api/portfolio", s.requireAuth(s.handlePortfolio))
	mux.HandleFunc("/api/portfolio/buy", s.requireAuth(s.handleBuy))
	mux.HandleFunc("/api/portfolio/sell", s.requireAuth(s.handleSell))
	mux.HandleFunc("/api/portfolio/position", s.requireAuth(s.handlePosition))
	mux.HandleFunc("/api/transactions", s.requireAuth(s.handleTransactions))
	mux.HandleFunc("/api/history", s.requireAuth(s.handleHistory))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
