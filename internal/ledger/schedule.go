package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saadkhan2003/masjid-ledger/internal/member"
)

// RunReport summarises one ScheduleMonthlyDebtGeneration run.
type RunReport struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	Generation    *GenerationResult
	MarkedOverdue int
	Recalculated  int
	RecalcFailed  int
}

// ScheduleMonthlyDebtGeneration generates the current month's debts, sweeps overdue debts
// and refreshes every member's total. Each stage runs even when an earlier one failed,
// and a failing member never stops the others. All errors are joined.
func (s *Service) ScheduleMonthlyDebtGeneration(ctx context.Context) (*RunReport, error) {
	report := &RunReport{StartedAt: s.clock.Now()}

	var errs []error

	gen, err := s.GenerateMonthlyDebts(ctx)
	report.Generation = gen

	if err != nil {
		errs = append(errs, fmt.Errorf("generating monthly debts: %w", err))
	}

	moved, err := s.UpdateOverdueDebts(ctx)
	report.MarkedOverdue = moved

	if err != nil {
		errs = append(errs, fmt.Errorf("updating overdue debts: %w", err))
	}

	members, err := s.members.ListMembers(ctx, member.ListFilter{})
	if err != nil {
		errs = append(errs, fmt.Errorf("listing members: %w", err))
	}

	for _, m := range members {
		if _, err := s.recalculate(ctx, m.ID); err != nil {
			report.RecalcFailed++
			errs = append(errs, err)

			continue
		}

		report.Recalculated++
	}

	report.FinishedAt = s.clock.Now()

	s.logger.Info("scheduled ledger run finished",
		"marked_overdue", report.MarkedOverdue,
		"recalculated", report.Recalculated,
		"recalc_failed", report.RecalcFailed,
	)

	return report, errors.Join(errs...)
}
