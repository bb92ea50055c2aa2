package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/metrics"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type MemberRepository interface {
	ListMembers(ctx context.Context, filter member.ListFilter) ([]*member.Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (*member.Member, error)
	UpdateTotalDebt(ctx context.Context, id uuid.UUID, total int64) error
}

type DebtRepository interface {
	ListDebts(ctx context.Context, filter DebtFilter) ([]*Debt, error)
	GetDebt(ctx context.Context, id uuid.UUID) (*Debt, error)
	// CreateDebt returns ErrDuplicateDebt when a generated monthly debt already exists for the period.
	CreateDebt(ctx context.Context, d *Debt) error
	UpdateDebtStatus(ctx context.Context, id uuid.UUID, status Status) error
	DeleteDebt(ctx context.Context, id uuid.UUID) error

	// BeginAllocation opens a unit of work that holds the member's allocation lock until
	// Commit or Rollback, so two payments for one member never read the same snapshot.
	BeginAllocation(ctx context.Context, memberID uuid.UUID) (AllocationTx, error)
}

type AllocationTx interface {
	ListOutstanding(ctx context.Context) ([]*Debt, error)
	MarkPaid(ctx context.Context, id uuid.UUID) error
	CreateDebt(ctx context.Context, d *Debt) error
	Commit() error
	Rollback() error
}

// Service is the debt ledger: it raises monthly debts, allocates payments against them
// and keeps each member's cached total debt in line with their outstanding debts.
// It holds no state between calls.
type Service struct {
	members  MemberRepository
	debts    DebtRepository
	clock    clock.Clock
	metrics  *metrics.Ledger
	logger   *slog.Logger
	validate *validator.Validate
}

type Option func(*Service)

func WithMetrics(m *metrics.Ledger) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(members MemberRepository, debts DebtRepository, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		members:  members,
		debts:    debts,
		clock:    clk,
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RecalculationError reports that a debt mutation was persisted but the member's
// total debt could not be refreshed. Re-running UpdateMemberTotalDebt repairs it.
type RecalculationError struct {
	MemberID uuid.UUID
	Err      error
}

func (e *RecalculationError) Error() string {
	return fmt.Sprintf("recalculating total debt for member %s: %v", e.MemberID, e.Err)
}

func (e *RecalculationError) Unwrap() error { return e.Err }

// recalculate refreshes the member's total and wraps any failure as a RecalculationError.
func (s *Service) recalculate(ctx context.Context, memberID uuid.UUID) (int64, error) {
	total, err := s.UpdateMemberTotalDebt(ctx, memberID)
	if err != nil {
		s.logger.Error("total debt recalculation failed", "member_id", memberID, "error", err)
		return 0, &RecalculationError{MemberID: memberID, Err: err}
	}

	return total, nil
}
