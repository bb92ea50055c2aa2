// Package scheduler runs the ledger's monthly orchestration on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/metrics"
)

var ErrAlreadyRunning = errors.New("scheduled run already in progress")

type Runner interface {
	ScheduleMonthlyDebtGeneration(ctx context.Context) (*ledger.RunReport, error)
}

type Config struct {
	Interval time.Duration
	// Timeout bounds a single run. Zero means no bound beyond the caller's context.
	Timeout time.Duration
}

type Scheduler struct {
	runner  Runner
	cfg     Config
	clock   clock.Clock
	metrics *metrics.Scheduler
	logger  *slog.Logger

	running sync.Mutex

	mu      sync.Mutex
	last    *ledger.RunReport
	lastErr error
}

func New(runner Runner, cfg Config, clk clock.Clock, m *metrics.Scheduler, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		runner:  runner,
		cfg:     cfg,
		clock:   clk,
		metrics: m,
		logger:  logger.With("component", "scheduler"),
	}
}

// RunOnce performs one orchestration run. Overlapping calls are rejected with ErrAlreadyRunning.
func (s *Scheduler) RunOnce(ctx context.Context) (*ledger.RunReport, error) {
	if !s.running.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Unlock()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := s.clock.Now()
	s.logger.Info("scheduled run started")

	report, err := s.runner.ScheduleMonthlyDebtGeneration(ctx)

	end := s.clock.Now()
	s.metrics.ObserveRun(start, end, err)

	s.mu.Lock()
	s.last = report
	s.lastErr = err
	s.mu.Unlock()

	log := s.logger.With("duration", end.Sub(start))
	if report != nil {
		log = log.With("marked_overdue", report.MarkedOverdue, "recalculated", report.Recalculated)

		if report.Generation != nil {
			log = log.With("created", report.Generation.Created)
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("scheduled run timed out", "timeout", s.cfg.Timeout, "error", err)
	case err != nil:
		log.Error("scheduled run finished with errors", "error", err)
	default:
		log.Info("scheduled run finished")
	}

	return report, err
}

// Run calls RunOnce immediately and then every Interval until ctx is cancelled.
// Failed runs are logged; the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.cfg.Interval)

	for {
		_, _ = s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// Last returns the most recent run's report and error, or nil when nothing ran yet.
func (s *Scheduler) Last() (*ledger.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last, s.lastErr
}
