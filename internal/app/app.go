// Package app wires the stores, services and background workers shared by the binaries.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
	"github.com/saadkhan2003/masjid-ledger/internal/config"
	"github.com/saadkhan2003/masjid-ledger/internal/database"
	"github.com/saadkhan2003/masjid-ledger/internal/importer"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	ledgerStore "github.com/saadkhan2003/masjid-ledger/internal/ledger/store"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	memberStore "github.com/saadkhan2003/masjid-ledger/internal/member/store"
	"github.com/saadkhan2003/masjid-ledger/internal/metrics"
	"github.com/saadkhan2003/masjid-ledger/internal/offline"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
	paymentStore "github.com/saadkhan2003/masjid-ledger/internal/payment/store"
	"github.com/saadkhan2003/masjid-ledger/internal/report"
	"github.com/saadkhan2003/masjid-ledger/internal/scheduler"
)

type App struct {
	Config   *config.Config
	DB       *sql.DB
	Clock    clock.Clock
	Registry *prometheus.Registry

	Members   *member.Service
	Ledger    *ledger.Service
	Payments  *payment.Service
	Reports   *report.Service
	Importer  *importer.Service
	Scheduler *scheduler.Scheduler

	// Relay is nil when opened WithoutRelay.
	Relay  *offline.Relay
	outbox *offline.Outbox
}

type openOptions struct {
	relay bool
}

type Option func(*openOptions)

// WithoutRelay skips the offline outbox. Short-lived commands use it so they do not
// contend with a running server for the outbox file lock.
func WithoutRelay() Option {
	return func(o *openOptions) { o.relay = false }
}

// Open connects to the database, applies migrations when configured and builds every service.
func Open(cfg *config.Config, opts ...Option) (*App, error) {
	o := openOptions{relay: true}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if cfg.DB.Migrate {
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}

	a := build(cfg, db, clock.Real{})

	if o.relay {
		if err := a.openRelay(cfg.Sync.OutboxPath); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return a, nil
}

func build(cfg *config.Config, db *sql.DB, clk clock.Clock) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		members  = memberStore.New(db)
		debts    = ledgerStore.New(db)
		payments = paymentStore.New(db)
	)

	var (
		memberSvc  = member.NewService(members, clk)
		ledgerSvc  = ledger.NewService(members, debts, clk, ledger.WithMetrics(metrics.NewLedger(reg)), ledger.WithLogger(slog.Default()))
		paymentSvc = payment.NewService(payments, ledgerSvc)
	)

	return &App{
		Config:    cfg,
		DB:        db,
		Clock:     clk,
		Registry:  reg,
		Members:   memberSvc,
		Ledger:    ledgerSvc,
		Payments:  paymentSvc,
		Reports:   report.NewService(memberSvc, paymentSvc, ledgerSvc, clk),
		Importer:  importer.NewService(cfg.Ledger.DefaultMonthlyDues),
		Scheduler: scheduler.New(ledgerSvc, scheduler.Config{Interval: cfg.Scheduler.Interval, Timeout: cfg.Scheduler.Timeout}, clk, metrics.NewScheduler(reg), slog.Default()),
	}
}

func (a *App) openRelay(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating outbox directory: %w", err)
		}
	}

	outbox, err := offline.OpenOutbox(path)
	if err != nil {
		return err
	}

	a.outbox = outbox
	a.Relay = offline.NewRelay(outbox, &offline.ServiceApplier{
		Members:  a.Members,
		Payments: a.Payments,
		Ledger:   a.Ledger,
		Logger:   slog.Default(),
	}, a.Clock, slog.Default())

	return nil
}

// Close waits for background replays, then releases the outbox and the database.
func (a *App) Close() error {
	var errs []error

	if a.Relay != nil {
		a.Relay.Wait()
	}

	if a.outbox != nil {
		errs = append(errs, a.outbox.Close())
	}

	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}

	return errors.Join(errs...)
}
