package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avicke/foliotrack/internal/auth"
	"github.com/avicke/foliotrack/internal/config"
	"github.com/avicke/foliotrack/internal/ledger"
	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/notify"
	"github.com/avicke/foliotrack/internal/pricing"
	"github.com/avicke/foliotrack/internal/snapshot"
	"github.com/avicke/foliotrack/internal/storage"
	"github.com/avicke/foliotrack/internal/valuation"
	"github.com/avicke/foliotrack/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "data/foliotrack.db", "path to SQLite database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("starting foliotrack", "stock_provider", cfg.Pricing.StockProvider)

	db, err := storage.NewDatabase(*dbPath)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := pricing.NewRouter(cfg, log)
	led := ledger.New(repo, oracle, log)
	engine := valuation.NewEngine(oracle, cfg.Pricing.LookupConcurrency, log)
	authSvc := auth.NewService(repo, cfg.SessionTTL(), log)
	notifier := notify.New(cfg, log)
	webServer := web.NewServer(authSvc, led, engine, repo, notifier, cfg, log)

	if cfg.Snapshot.Enabled {
		recorder := snapshot.NewRecorder(repo, engine, cfg.SnapshotInterval(), log)
		go recorder.Run(ctx)
	}

	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	notifier.NotifyStatus("📈 foliotrack started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	cancel() // stop snapshot recorder

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	notifier.NotifyStatus("🛑 foliotrack stopped")
	log.Info("foliotrack stopped")
}
