package ledger

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Allocation describes how one payment was applied.
type Allocation struct {
	MemberID    uuid.UUID
	Amount      int64
	PaymentDate time.Time
	// Paid lists every debt closed by this payment, oldest first.
	Paid []*Debt
	// Remainder is the new pending debt for the unpaid part of the last debt, if any.
	Remainder *Debt
	Applied   int64
	// Unapplied is the surplus left after every outstanding debt was cleared.
	// It is reported here and not kept anywhere else.
	Unapplied int64
	TotalDebt int64
}

// SortForAllocation orders debts oldest due date first. Debts due on the same day keep
// creation order, then ID order, so the result is deterministic.
func SortForAllocation(debts []*Debt) {
	slices.SortStableFunc(debts, func(a, b *Debt) int {
		if c := a.DueDate.Compare(b.DueDate); c != 0 {
			return c
		}

		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return bytes.Compare(a.ID[:], b.ID[:])
	})
}

// ProcessPayment applies amount to the member's outstanding debts, oldest due date first.
// Each fully covered debt is marked paid. The first debt the payment cannot fully cover is
// also marked paid and a new pending debt is raised for what is left of it. Money left over
// once every debt is paid is discarded.
//
// The debts are updated in one unit of work. The member's total is refreshed after it
// commits; if that fails the allocation is returned together with a *RecalculationError.
func (s *Service) ProcessPayment(ctx context.Context, memberID uuid.UUID, amount int64, paymentDate time.Time) (*Allocation, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := s.members.GetMember(ctx, memberID); err != nil {
		return nil, fmt.Errorf("loading member %s: %w", memberID, err)
	}

	alloc, err := s.allocate(ctx, memberID, amount, paymentDate)
	if err != nil {
		s.metrics.PaymentProcessed("failed", 0, 0)
		return nil, err
	}

	s.metrics.PaymentProcessed("allocated", alloc.Applied, alloc.Unapplied)

	if alloc.Unapplied > 0 {
		s.logger.Warn("payment exceeded outstanding debt, surplus discarded",
			"member_id", memberID,
			"amount", amount,
			"unapplied", alloc.Unapplied,
		)
	}

	total, err := s.recalculate(ctx, memberID)
	if err != nil {
		return alloc, err
	}

	alloc.TotalDebt = total

	return alloc, nil
}

func (s *Service) allocate(ctx context.Context, memberID uuid.UUID, amount int64, paymentDate time.Time) (*Allocation, error) {
	atx, err := s.debts.BeginAllocation(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("begin allocation: %w", err)
	}
	defer atx.Rollback()

	outstanding, err := atx.ListOutstanding(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing outstanding debts: %w", err)
	}

	SortForAllocation(outstanding)

	alloc := &Allocation{
		MemberID:    memberID,
		Amount:      amount,
		PaymentDate: paymentDate,
	}

	remaining := amount

	for _, d := range outstanding {
		if remaining <= 0 {
			break
		}

		if err := atx.MarkPaid(ctx, d.ID); err != nil {
			return nil, fmt.Errorf("marking debt %s paid: %w", d.ID, err)
		}

		if remaining >= d.Amount {
			remaining -= d.Amount
			alloc.Paid = append(alloc.Paid, d)

			continue
		}

		rest := remainderOf(d, d.Amount-remaining)
		if err := atx.CreateDebt(ctx, rest); err != nil {
			return nil, fmt.Errorf("creating remainder of debt %s: %w", d.ID, err)
		}

		alloc.Paid = append(alloc.Paid, d)
		alloc.Remainder = rest
		remaining = 0
	}

	if err := atx.Commit(); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}

	for _, d := range alloc.Paid {
		d.Status = StatusPaid
	}

	alloc.Applied = amount - remaining
	alloc.Unapplied = remaining

	return alloc, nil
}

// remainderOf builds the pending debt carrying the unpaid part of d. It keeps d's due date,
// type and period so it is collected next, ahead of later months.
func remainderOf(d *Debt, amount int64) *Debt {
	desc := d.Description
	if !strings.HasSuffix(desc, PartialRemainderSuffix) {
		desc += PartialRemainderSuffix
	}

	return &Debt{
		MemberID:    d.MemberID,
		ParentID:    new(d.ID),
		Amount:      amount,
		Type:        d.Type,
		Description: desc,
		DueDate:     d.DueDate,
		Status:      StatusPending,
		Month:       d.Month,
		Year:        d.Year,
	}
}
