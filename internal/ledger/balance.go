package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// UpdateMemberTotalDebt recomputes the member's total debt from their pending and overdue
// debts, persists it and returns it. It is always safe to re-run.
func (s *Service) UpdateMemberTotalDebt(ctx context.Context, memberID uuid.UUID) (int64, error) {
	debts, err := s.debts.ListDebts(ctx, DebtFilter{
		MemberID: &memberID,
		Statuses: outstandingStatuses,
	})
	if err != nil {
		return 0, fmt.Errorf("listing outstanding debts: %w", err)
	}

	total := TotalOutstanding(debts)

	if err := s.members.UpdateTotalDebt(ctx, memberID, total); err != nil {
		return 0, fmt.Errorf("saving total debt: %w", err)
	}

	return total, nil
}

// UpdateOverdueDebts moves every pending debt whose due date is strictly before now to
// overdue and returns how many moved. A failing debt does not stop the sweep.
func (s *Service) UpdateOverdueDebts(ctx context.Context) (int, error) {
	now := s.clock.Now()

	debts, err := s.debts.ListDebts(ctx, DebtFilter{
		Statuses:  []Status{StatusPending},
		DueBefore: &now,
	})
	if err != nil {
		return 0, fmt.Errorf("listing pending debts: %w", err)
	}

	var (
		moved int
		errs  []error
	)

	for _, d := range debts {
		if d.Status != StatusPending || !d.DueDate.Before(now) {
			continue
		}

		if err := s.debts.UpdateDebtStatus(ctx, d.ID, StatusOverdue); err != nil {
			s.logger.Error("failed to mark debt overdue", "debt_id", d.ID, "member_id", d.MemberID, "error", err)
			errs = append(errs, fmt.Errorf("debt %s: %w", d.ID, err))

			continue
		}

		moved++
	}

	s.metrics.MarkedOverdue(moved)

	if moved > 0 {
		s.logger.Info("marked debts overdue", "count", moved)
	}

	return moved, errors.Join(errs...)
}
