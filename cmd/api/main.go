package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/saadkhan2003/masjid-ledger/internal/app"
	"github.com/saadkhan2003/masjid-ledger/internal/config"
	ledgerHttp "github.com/saadkhan2003/masjid-ledger/internal/http"
	debtHandler "github.com/saadkhan2003/masjid-ledger/internal/http/debt"
	importHandler "github.com/saadkhan2003/masjid-ledger/internal/http/importcsv"
	ledgerHandler "github.com/saadkhan2003/masjid-ledger/internal/http/ledger"
	memberHandler "github.com/saadkhan2003/masjid-ledger/internal/http/member"
	syncHandler "github.com/saadkhan2003/masjid-ledger/internal/http/offline"
	paymentHandler "github.com/saadkhan2003/masjid-ledger/internal/http/payment"
	reportHandler "github.com/saadkhan2003/masjid-ledger/internal/http/report"
	"github.com/saadkhan2003/masjid-ledger/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(cfg.Log.Level)

	a, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close app", "error", err)
		}
	}()

	router := ledgerHttp.New(ledgerHttp.Handlers{
		Members:  memberHandler.NewHandler(a.Members, a.Ledger, a.Payments, cfg.Ledger.DefaultMonthlyDues),
		Payments: paymentHandler.NewHandler(a.Payments),
		Debts:    debtHandler.NewHandler(a.Ledger),
		Ledger:   ledgerHandler.NewHandler(a.Ledger, a.Scheduler),
		Reports:  reportHandler.NewHandler(a.Reports, a.Clock),
		Import:   importHandler.NewHandler(a.Importer, a.Members, a.Ledger),
		Sync:     syncHandler.NewHandler(a.Relay),
	}, ledgerHttp.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		Timeout:        cfg.Server.Timeout,
		Gatherer:       a.Registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Anything left in the outbox from a previous run is replayed at startup.
	a.Relay.SetOnline(true)

	// The scheduler must be stopped before the deferred a.Close releases the store.
	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	if cfg.Scheduler.Enabled {
		wg.Go(func() { a.Scheduler.Run(ctx) })
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}
