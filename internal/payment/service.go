package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=payment
type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListPayments(ctx context.Context, filter ListFilter) ([]*Payment, error)
	SumPayments(ctx context.Context, filter ListFilter) (int64, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, id uuid.UUID) error
}

// Ledger is the part of the debt ledger a payment drives.
type Ledger interface {
	ProcessPayment(ctx context.Context, memberID uuid.UUID, amount int64, paymentDate time.Time) (*ledger.Allocation, error)
	UpdateMemberTotalDebt(ctx context.Context, memberID uuid.UUID) (int64, error)
}

type ListFilter struct {
	MemberID *uuid.UUID
	Year     *int
	Month    *int
	From     *time.Time
	To       *time.Time
	// Limit caps the number of rows, newest first. Zero means no limit.
	Limit int
}

type CreateParams struct {
	MemberID      uuid.UUID `validate:"required"`
	Amount        int64     `validate:"gt=0,lte=999999"`
	PaymentDate   time.Time `validate:"required"`
	Month         int       `validate:"min=1,max=12"`
	Year          int       `validate:"min=1900,max=2100"`
	Notes         *string   `validate:"omitempty,max=500"`
	ReceiptNumber *string   `validate:"omitempty,max=50"`
}

type UpdateParams struct {
	Amount        *int64     `validate:"omitempty,gt=0,lte=999999"`
	PaymentDate   *time.Time `validate:"omitempty"`
	Month         *int       `validate:"omitempty,min=1,max=12"`
	Year          *int       `validate:"omitempty,min=1900,max=2100"`
	Notes         *string    `validate:"omitempty,max=500"`
	ReceiptNumber *string    `validate:"omitempty,max=50"`
}

type Service struct {
	repo     Repository
	ledger   Ledger
	logger   *slog.Logger
	validate *validator.Validate
}

func NewService(repo Repository, l Ledger) *Service {
	return &Service{
		repo:     repo,
		ledger:   l,
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Record stores the payment and then allocates it against the member's debts.
//
// If allocation fails the payment stays stored, the member's total is refreshed as a
// fallback, and the returned error is an *AllocationError alongside a Receipt without an
// Allocation. A *ledger.RecalculationError means allocation succeeded but the total is stale.
func (s *Service) Record(ctx context.Context, params CreateParams) (*Receipt, error) {
	if !params.PaymentDate.IsZero() {
		if params.Month == 0 {
			params.Month = int(params.PaymentDate.Month())
		}

		if params.Year == 0 {
			params.Year = params.PaymentDate.Year()
		}
	}

	params.Notes = trimOptional(params.Notes)
	params.ReceiptNumber = trimOptional(params.ReceiptNumber)

	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	p := &Payment{
		MemberID:      params.MemberID,
		Amount:        params.Amount,
		PaymentDate:   dateOnly(params.PaymentDate),
		Month:         params.Month,
		Year:          params.Year,
		Notes:         params.Notes,
		ReceiptNumber: params.ReceiptNumber,
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	return s.allocate(ctx, p)
}

func (s *Service) allocate(ctx context.Context, p *Payment) (*Receipt, error) {
	receipt := &Receipt{Payment: p}

	alloc, err := s.ledger.ProcessPayment(ctx, p.MemberID, p.Amount, p.PaymentDate)
	if err == nil {
		receipt.Allocation = alloc
		return receipt, nil
	}

	var recalcErr *ledger.RecalculationError
	if errors.As(err, &recalcErr) {
		receipt.Allocation = alloc
		return receipt, err
	}

	s.logger.Error("payment allocation failed", "payment_id", p.ID, "member_id", p.MemberID, "error", err)

	if _, rerr := s.ledger.UpdateMemberTotalDebt(ctx, p.MemberID); rerr != nil {
		s.logger.Error("fallback recalculation failed", "member_id", p.MemberID, "error", rerr)
	}

	return receipt, &AllocationError{PaymentID: p.ID, Err: err}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Payment, error) {
	return s.repo.ListPayments(ctx, filter)
}

// Recent returns the latest payments, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Payment, error) {
	return s.repo.ListPayments(ctx, ListFilter{Limit: limit})
}

// MonthlyTotal sums the payments booked to the given month.
func (s *Service) MonthlyTotal(ctx context.Context, year, month int) (int64, error) {
	return s.repo.SumPayments(ctx, ListFilter{Year: &year, Month: &month})
}

// Update changes a payment. A changed amount is allocated again in full against whatever
// is outstanding now; debts settled by the old amount stay settled.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Receipt, error) {
	params.Notes = trimOptional(params.Notes)
	params.ReceiptNumber = trimOptional(params.ReceiptNumber)

	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	amountChanged := params.Amount != nil && *params.Amount != p.Amount

	if params.Amount != nil {
		p.Amount = *params.Amount
	}

	if params.PaymentDate != nil {
		p.PaymentDate = dateOnly(*params.PaymentDate)
	}

	if params.Month != nil {
		p.Month = *params.Month
	}

	if params.Year != nil {
		p.Year = *params.Year
	}

	if params.Notes != nil {
		p.Notes = params.Notes
	}

	if params.ReceiptNumber != nil {
		p.ReceiptNumber = params.ReceiptNumber
	}

	if err := s.repo.UpdatePayment(ctx, p); err != nil {
		return nil, err
	}

	if !amountChanged {
		return &Receipt{Payment: p}, nil
	}

	return s.allocate(ctx, p)
}

// Delete removes the payment and refreshes the member's total. Debts the payment settled
// are not reopened.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeletePayment(ctx, id); err != nil {
		return err
	}

	if _, err := s.ledger.UpdateMemberTotalDebt(ctx, p.MemberID); err != nil {
		s.logger.Error("recalculation after payment delete failed", "member_id", p.MemberID, "error", err)
		return &ledger.RecalculationError{MemberID: p.MemberID, Err: err}
	}

	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}

	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}

	return &v
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
