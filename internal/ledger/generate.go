package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/member"
)

// GenerationResult summarises a generation run. Created == 0 with no Failures means
// everything was already up to date.
type GenerationResult struct {
	Created  int
	Existing int
	// Skipped counts members whose monthly dues are zero; no debt is raised for them.
	Skipped  int
	Failures []Failure
}

// Failure records one member (and period, when known) that could not be processed.
type Failure struct {
	MemberID uuid.UUID
	Period   Period
	Err      error
}

func (f Failure) Error() string {
	if f.Period.Year == 0 {
		return fmt.Sprintf("member %s: %v", f.MemberID, f.Err)
	}

	return fmt.Sprintf("member %s %s: %v", f.MemberID, f.Period, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Err joins all failures, or returns nil when there were none.
func (r *GenerationResult) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}

	return errors.Join(errs...)
}

func (r *GenerationResult) merge(o *GenerationResult) {
	if o == nil {
		return
	}

	r.Created += o.Created
	r.Existing += o.Existing
	r.Skipped += o.Skipped
	r.Failures = append(r.Failures, o.Failures...)
}

// NewMonthlyDebt builds the pending monthly dues debt for m in period p.
func NewMonthlyDebt(m *member.Member, p Period) *Debt {
	return &Debt{
		MemberID:    m.ID,
		Amount:      m.MonthlyDues,
		Type:        TypeMonthlyDues,
		Description: p.Description(),
		DueDate:     p.DueDate(),
		Status:      StatusPending,
		Month:       int(p.Month),
		Year:        p.Year,
	}
}

// GenerateMonthlyDebts raises the current month's dues for every active member that does
// not have them yet. Running it again in the same month creates nothing.
func (s *Service) GenerateMonthlyDebts(ctx context.Context) (*GenerationResult, error) {
	members, err := s.members.ListMembers(ctx, member.ListFilter{Status: new(member.StatusActive)})
	if err != nil {
		return nil, fmt.Errorf("listing active members: %w", err)
	}

	period := PeriodOf(s.clock.Now())
	res := &GenerationResult{}

	for _, m := range members {
		s.ensureMonthlyDebt(ctx, m, period, res)
	}

	s.metrics.DebtsGenerated("monthly", res.Created)
	s.logger.Info("monthly debt generation finished",
		"period", period.String(),
		"created", res.Created,
		"existing", res.Existing,
		"failed", len(res.Failures),
	)

	return res, res.Err()
}

// GenerateHistoricalDebts backfills the member's dues from their join month through the
// current month, oldest first, then refreshes their total debt. The join month is charged
// in full.
func (s *Service) GenerateHistoricalDebts(ctx context.Context, memberID uuid.UUID) (*GenerationResult, error) {
	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("loading member %s: %w", memberID, err)
	}

	res := &GenerationResult{}

	for _, p := range Periods(m.JoinDate, s.clock.Now()) {
		s.ensureMonthlyDebt(ctx, m, p, res)
	}

	s.metrics.DebtsGenerated("historical", res.Created)

	_, recalcErr := s.recalculate(ctx, m.ID)

	return res, errors.Join(res.Err(), recalcErr)
}

// InitializeDebtSystem backfills history for every active member.
func (s *Service) InitializeDebtSystem(ctx context.Context) (*GenerationResult, error) {
	members, err := s.members.ListMembers(ctx, member.ListFilter{Status: new(member.StatusActive)})
	if err != nil {
		return nil, fmt.Errorf("listing active members: %w", err)
	}

	total := &GenerationResult{}

	var errs []error

	for _, m := range members {
		res, err := s.GenerateHistoricalDebts(ctx, m.ID)
		total.merge(res)

		if err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("debt system initialised", "members", len(members), "created", total.Created)

	return total, errors.Join(errs...)
}

func (s *Service) ensureMonthlyDebt(ctx context.Context, m *member.Member, p Period, res *GenerationResult) {
	if m.MonthlyDues <= 0 {
		res.Skipped++
		return
	}

	existing, err := s.debts.ListDebts(ctx, DebtFilter{
		MemberID: &m.ID,
		Type:     new(TypeMonthlyDues),
		Year:     new(p.Year),
		Month:    new(int(p.Month)),
	})
	if err != nil {
		s.fail(res, m.ID, p, fmt.Errorf("checking existing debt: %w", err))
		return
	}

	if len(existing) > 0 {
		res.Existing++
		return
	}

	if err := s.debts.CreateDebt(ctx, NewMonthlyDebt(m, p)); err != nil {
		if errors.Is(err, ErrDuplicateDebt) {
			res.Existing++
			return
		}

		s.fail(res, m.ID, p, fmt.Errorf("creating debt: %w", err))

		return
	}

	res.Created++
}

func (s *Service) fail(res *GenerationResult, memberID uuid.UUID, p Period, err error) {
	s.logger.Error("debt generation failed", "member_id", memberID, "period", p.String(), "error", err)
	res.Failures = append(res.Failures, Failure{MemberID: memberID, Period: p, Err: err})
}
