package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mleite/autofund-backend/internal/adapter/httpapi"
	"github.com/mleite/autofund-backend/internal/adapter/repository/memory"
	"github.com/mleite/autofund-backend/internal/adapter/repository/postgres"
	"github.com/mleite/autofund-backend/internal/config"
	"github.com/mleite/autofund-backend/internal/domain"
	"github.com/mleite/autofund-backend/internal/usecase/conditions"
	"github.com/mleite/autofund-backend/internal/usecase/engine"
	"github.com/mleite/autofund-backend/internal/usecase/history"
	"github.com/mleite/autofund-backend/internal/usecase/rulemgmt"
	"github.com/mleite/autofund-backend/internal/usecase/seeder"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ledger, ruleRepo, execLog, err := buildStorage(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	threshold, err := cfg.IncomeThreshold()
	if err != nil {
		logger.Error("invalid income threshold", "error", err)
		os.Exit(1)
	}
	eval := conditions.Evaluator{IncomeThreshold: threshold}

	if cfg.Engine.SeedTemplates {
		if err := seeder.NewTemplateSeeder(ruleRepo).Seed(context.Background()); err != nil {
			logger.Error("failed to seed template rules", "error", err)
			os.Exit(1)
		}
		logger.Info("template rules seeded")
	}

	histSvc := history.NewService(execLog, ledger, logger)
	eng := engine.New(ledger, ruleRepo, histSvc, eval, logger)
	ruleSvc := rulemgmt.NewService(ruleRepo, logger)

	server := httpapi.NewServer(ruleSvc, eng, histSvc, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(cfg.Server.APIToken),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr, "storage", cfg.Storage)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(httpServer, logger)
}

func buildStorage(cfg *config.Config, logger *slog.Logger) (domain.BudgetLedger, domain.RuleRepository, domain.ExecutionLogRepository, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Info("using in-memory storage")
		return memory.NewLedger(),
			memory.NewRuleRepository(),
			memory.NewExecutionLogRepository(cfg.Engine.HistoryLimit),
			nil
	}

	db, err := postgres.NewDB(cfg.Database.ConnectionString())
	if err != nil {
		return nil, nil, nil, err
	}
	return postgres.NewLedger(db),
		postgres.NewRuleRepository(db),
		postgres.NewExecutionLogRepository(db),
		nil
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(server *http.Server, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
