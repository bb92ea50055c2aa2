package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateDebtParams describes a manually raised charge such as a late fee.
type CreateDebtParams struct {
	MemberID    uuid.UUID `validate:"required"`
	Amount      int64     `validate:"gt=0,lte=9999999"`
	Type        Type      `validate:"oneof=monthly_dues custom late_fee"`
	Description string    `validate:"max=500"`
	DueDate     time.Time `validate:"required"`
	// Month and Year default to the period of DueDate.
	Month int `validate:"omitempty,min=1,max=12"`
	Year  int `validate:"omitempty,min=1900,max=2100"`
}

// CreateDebt raises a manual debt for a member and refreshes their total. A debt that was
// stored but whose total could not be refreshed is returned with a *RecalculationError.
func (s *Service) CreateDebt(ctx context.Context, params CreateDebtParams) (*Debt, error) {
	params.Description = strings.TrimSpace(params.Description)

	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDebt, err)
	}

	if _, err := s.members.GetMember(ctx, params.MemberID); err != nil {
		return nil, fmt.Errorf("loading member %s: %w", params.MemberID, err)
	}

	dueDate := dateOnly(params.DueDate)

	if params.Month == 0 {
		params.Month = int(dueDate.Month())
	}

	if params.Year == 0 {
		params.Year = dueDate.Year()
	}

	if params.Description == "" {
		params.Description = defaultDescription(params.Type, Period{Year: params.Year, Month: time.Month(params.Month)})
	}

	d := &Debt{
		MemberID:    params.MemberID,
		Amount:      params.Amount,
		Type:        params.Type,
		Description: params.Description,
		DueDate:     dueDate,
		Status:      StatusPending,
		Month:       params.Month,
		Year:        params.Year,
	}
	if err := s.debts.CreateDebt(ctx, d); err != nil {
		return nil, fmt.Errorf("creating debt: %w", err)
	}

	if _, err := s.recalculate(ctx, d.MemberID); err != nil {
		return d, err
	}

	return d, nil
}

func (s *Service) GetDebt(ctx context.Context, id uuid.UUID) (*Debt, error) {
	return s.debts.GetDebt(ctx, id)
}

func (s *Service) ListDebts(ctx context.Context, filter DebtFilter) ([]*Debt, error) {
	return s.debts.ListDebts(ctx, filter)
}

// UpdateDebtStatus sets a debt's status by hand and refreshes the owner's total.
func (s *Service) UpdateDebtStatus(ctx context.Context, id uuid.UUID, status Status) (*Debt, error) {
	switch status {
	case StatusPending, StatusOverdue, StatusPaid:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidDebt, status)
	}

	d, err := s.debts.GetDebt(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.Status == status {
		return d, nil
	}

	if err := checkTransition(d.Status, status); err != nil {
		return nil, err
	}

	if err := s.debts.UpdateDebtStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("updating debt status: %w", err)
	}

	d.Status = status

	if _, err := s.recalculate(ctx, d.MemberID); err != nil {
		return d, err
	}

	return d, nil
}

// checkTransition allows debts to move forward only: pending to overdue or paid,
// overdue to paid. A paid debt is settled by an allocation and stays settled.
func checkTransition(from, to Status) error {
	switch {
	case from == StatusPaid:
		return fmt.Errorf("%w: paid debts cannot be reopened", ErrInvalidDebt)
	case from == StatusOverdue && to == StatusPending:
		return fmt.Errorf("%w: overdue debts cannot return to pending", ErrInvalidDebt)
	}

	return nil
}

// DeleteDebt removes a debt and refreshes the owner's total.
func (s *Service) DeleteDebt(ctx context.Context, id uuid.UUID) error {
	d, err := s.debts.GetDebt(ctx, id)
	if err != nil {
		return err
	}

	if err := s.debts.DeleteDebt(ctx, id); err != nil {
		return fmt.Errorf("deleting debt: %w", err)
	}

	_, err = s.recalculate(ctx, d.MemberID)

	return err
}

func defaultDescription(t Type, p Period) string {
	switch t {
	case TypeMonthlyDues:
		return p.Description()
	case TypeLateFee:
		return fmt.Sprintf("Late fee for %s %d", p.Month, p.Year)
	default:
		return fmt.Sprintf("Charge for %s %d", p.Month, p.Year)
	}
}
