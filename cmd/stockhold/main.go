package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/stockhold/internal/config"
	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/engine"
	"github.com/efreitasn/stockhold/internal/handler"
	"github.com/efreitasn/stockhold/internal/service"
	"github.com/efreitasn/stockhold/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil {
			os.Exit(1)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	clock := domain.SystemClock{}

	catalog, err := loadCatalog(cfg.CatalogFile, clock)
	if err != nil {
		logger.Error("failed to load catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("catalog loaded",
		slog.Int("products", catalog.Count()),
		slog.String("source", catalogSource(cfg.CatalogFile)),
	)

	reservations := store.NewReservationStore()
	webhookStore := store.NewWebhookStore()
	ledgers := engine.NewLedgerManager()

	// Webhook service first: the sweeper reports expiries through it.
	webhookSvc := service.NewWebhookService(webhookStore, cfg.WebhookTimeout, clock, logger)

	reserver := engine.NewReserver(ledgers, catalog, reservations, clock, cfg.HoldDuration, cfg.CatalogTimeout, logger)
	expiryMgr := engine.NewExpiryManager(cfg.SweepInterval, ledgers, reservations, clock, webhookSvc, logger)

	productSvc := service.NewProductService(catalog, reserver)
	reservationSvc := service.NewReservationService(reserver, reservations, catalog, webhookSvc)

	router := handler.NewRouter(productSvc, reservationSvc, webhookSvc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	expiryMgr.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.Duration("hold_duration", cfg.HoldDuration),
			slog.Duration("sweep_interval", cfg.SweepInterval),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	webhookSvc.Wait()

	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// loadCatalog returns the built-in product seed, or the products in path
// when one is given.
func loadCatalog(path string, clock domain.Clock) (*store.ProductStore, error) {
	if path == "" {
		return store.NewSeededProductStore(clock)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	catalog := store.NewProductStore(clock)
	if err := catalog.Load(f); err != nil {
		return nil, fmt.Errorf("load catalog file %s: %w", path, err)
	}
	return catalog, nil
}

func catalogSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
