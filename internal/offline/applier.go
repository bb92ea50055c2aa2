package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

type MemberService interface {
	Create(ctx context.Context, params member.CreateParams) (*member.Member, error)
	Update(ctx context.Context, id uuid.UUID, params member.UpdateParams) (*member.Member, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PaymentService interface {
	Record(ctx context.Context, params payment.CreateParams) (*payment.Receipt, error)
	Update(ctx context.Context, id uuid.UUID, params payment.UpdateParams) (*payment.Receipt, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type LedgerService interface {
	GenerateHistoricalDebts(ctx context.Context, memberID uuid.UUID) (*ledger.GenerationResult, error)
	CreateDebt(ctx context.Context, params ledger.CreateDebtParams) (*ledger.Debt, error)
	UpdateDebtStatus(ctx context.Context, id uuid.UUID, status ledger.Status) (*ledger.Debt, error)
	DeleteDebt(ctx context.Context, id uuid.UUID) error
}

// ServiceApplier applies operations through the domain services, so a replayed payment
// is allocated exactly like one entered online.
type ServiceApplier struct {
	Members  MemberService
	Payments PaymentService
	Ledger   LedgerService
	Logger   *slog.Logger
}

type memberData struct {
	ID          uuid.UUID      `json:"id"`
	Name        *string        `json:"name"`
	Phone       *string        `json:"phone"`
	Address     *string        `json:"address"`
	Status      *member.Status `json:"status"`
	JoinDate    *time.Time     `json:"join_date"`
	MonthlyDues *int64         `json:"monthly_dues"`
}

type paymentData struct {
	ID            uuid.UUID  `json:"id"`
	MemberID      uuid.UUID  `json:"member_id"`
	Amount        *int64     `json:"amount"`
	PaymentDate   *time.Time `json:"payment_date"`
	Month         *int       `json:"month"`
	Year          *int       `json:"year"`
	Notes         *string    `json:"notes"`
	ReceiptNumber *string    `json:"receipt_number"`
}

type debtData struct {
	ID          uuid.UUID      `json:"id"`
	MemberID    uuid.UUID      `json:"member_id"`
	Amount      int64          `json:"amount"`
	Type        ledger.Type    `json:"type"`
	Description string         `json:"description"`
	DueDate     time.Time      `json:"due_date"`
	Status      *ledger.Status `json:"status"`
	Month       int            `json:"month"`
	Year        int            `json:"year"`
}

func (a *ServiceApplier) Apply(ctx context.Context, op Operation) error {
	switch op.Table {
	case TableMembers:
		var d memberData
		if err := json.Unmarshal(op.Data, &d); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
		}

		return a.applyMember(ctx, op.Kind, d)
	case TablePayments:
		var d paymentData
		if err := json.Unmarshal(op.Data, &d); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
		}

		return a.applyPayment(ctx, op.Kind, d)
	case TableDebts:
		var d debtData
		if err := json.Unmarshal(op.Data, &d); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
		}

		return a.applyDebt(ctx, op.Kind, d)
	default:
		return fmt.Errorf("%w: unknown table %q", ErrInvalidOperation, op.Table)
	}
}

func (a *ServiceApplier) applyMember(ctx context.Context, kind Kind, d memberData) error {
	switch kind {
	case KindCreate:
		params := member.CreateParams{
			Phone:   d.Phone,
			Address: d.Address,
		}

		if d.Name != nil {
			params.Name = *d.Name
		}

		if d.Status != nil {
			params.Status = *d.Status
		}

		if d.JoinDate != nil {
			params.JoinDate = *d.JoinDate
		}

		if d.MonthlyDues != nil {
			params.MonthlyDues = *d.MonthlyDues
		}

		m, err := a.Members.Create(ctx, params)
		if err != nil {
			return err
		}

		// The member exists now; a failed backfill is repaired by the next scheduled run.
		if _, err := a.Ledger.GenerateHistoricalDebts(ctx, m.ID); err != nil {
			a.logger().Warn("historical backfill failed for replayed member", "member_id", m.ID, "error", err)
		}

		return nil
	case KindUpdate:
		_, err := a.Members.Update(ctx, d.ID, member.UpdateParams{
			Name:        d.Name,
			Phone:       d.Phone,
			Address:     d.Address,
			Status:      d.Status,
			MonthlyDues: d.MonthlyDues,
		})

		return err
	case KindDelete:
		return a.Members.Delete(ctx, d.ID)
	}

	return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, kind)
}

func (a *ServiceApplier) applyPayment(ctx context.Context, kind Kind, d paymentData) error {
	switch kind {
	case KindCreate:
		params := payment.CreateParams{
			MemberID:      d.MemberID,
			Notes:         d.Notes,
			ReceiptNumber: d.ReceiptNumber,
		}

		if d.Amount != nil {
			params.Amount = *d.Amount
		}

		if d.PaymentDate != nil {
			params.PaymentDate = *d.PaymentDate
		}

		if d.Month != nil {
			params.Month = *d.Month
		}

		if d.Year != nil {
			params.Year = *d.Year
		}

		_, err := a.Payments.Record(ctx, params)

		return a.storedPayment(err)
	case KindUpdate:
		_, err := a.Payments.Update(ctx, d.ID, payment.UpdateParams{
			Amount:        d.Amount,
			PaymentDate:   d.PaymentDate,
			Month:         d.Month,
			Year:          d.Year,
			Notes:         d.Notes,
			ReceiptNumber: d.ReceiptNumber,
		})

		return a.storedPayment(err)
	case KindDelete:
		err := a.Payments.Delete(ctx, d.ID)

		var recalcErr *ledger.RecalculationError
		if errors.As(err, &recalcErr) {
			a.logger().Warn("payment deleted but total not refreshed", "member_id", recalcErr.MemberID, "error", err)
			return nil
		}

		return err
	}

	return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, kind)
}

// storedPayment treats errors raised after the payment row was written as success.
// Returning them would keep the operation queued and record the payment twice.
func (a *ServiceApplier) storedPayment(err error) error {
	var (
		allocErr  *payment.AllocationError
		recalcErr *ledger.RecalculationError
	)

	switch {
	case errors.As(err, &allocErr):
		a.logger().Warn("replayed payment stored but not allocated", "payment_id", allocErr.PaymentID, "error", err)
		return nil
	case errors.As(err, &recalcErr):
		a.logger().Warn("replayed payment allocated but total not refreshed", "member_id", recalcErr.MemberID, "error", err)
		return nil
	}

	return err
}

func (a *ServiceApplier) applyDebt(ctx context.Context, kind Kind, d debtData) error {
	var err error

	switch kind {
	case KindCreate:
		_, err = a.Ledger.CreateDebt(ctx, ledger.CreateDebtParams{
			MemberID:    d.MemberID,
			Amount:      d.Amount,
			Type:        d.Type,
			Description: d.Description,
			DueDate:     d.DueDate,
			Month:       d.Month,
			Year:        d.Year,
		})
	case KindUpdate:
		if d.Status == nil {
			return fmt.Errorf("%w: debt update without status", ErrInvalidOperation)
		}

		_, err = a.Ledger.UpdateDebtStatus(ctx, d.ID, *d.Status)
	case KindDelete:
		err = a.Ledger.DeleteDebt(ctx, d.ID)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, kind)
	}

	var recalcErr *ledger.RecalculationError
	if errors.As(err, &recalcErr) {
		a.logger().Warn("debt change stored but total not refreshed", "member_id", recalcErr.MemberID, "error", err)
		return nil
	}

	return err
}

func (a *ServiceApplier) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}

	return slog.Default()
}
