package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

// RecentPaymentsLimit is how many payments the dashboard shows.
const RecentPaymentsLimit = 10

const topContributorsLimit = 5

type MemberLister interface {
	List(ctx context.Context, filter member.ListFilter) ([]*member.Member, error)
}

type PaymentLister interface {
	List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error)
	Recent(ctx context.Context, limit int) ([]*payment.Payment, error)
	MonthlyTotal(ctx context.Context, year, month int) (int64, error)
}

type DebtLister interface {
	ListDebts(ctx context.Context, filter ledger.DebtFilter) ([]*ledger.Debt, error)
}

// DashboardStats is the committee's landing view. Amounts are in paisa.
type DashboardStats struct {
	TotalMembers      int
	ActiveMembers     int
	MonthlyCollection int64
	Outstanding       int64
	RecentPayments    []*payment.Payment
	OverdueDebts      []*ledger.Debt
}

type MonthlyTotal struct {
	Period ledger.Period
	Amount int64
	Count  int
}

type Contributor struct {
	MemberID uuid.UUID
	Name     string
	Amount   int64
}

type StatusTotal struct {
	Status ledger.Status
	Count  int
	Amount int64
}

// Summary covers payments received in [From, To] and the debt book as it stands now.
type Summary struct {
	GeneratedAt     time.Time
	From            time.Time
	To              time.Time
	TotalMembers    int
	ActiveMembers   int
	TotalPayments   int64
	Outstanding     int64
	MonthlyPayments []MonthlyTotal
	TopContributors []Contributor
	DebtsByStatus   []StatusTotal
}

type Service struct {
	members  MemberLister
	payments PaymentLister
	debts    DebtLister
	clock    clock.Clock
}

func NewService(members MemberLister, payments PaymentLister, debts DebtLister, clk clock.Clock) *Service {
	return &Service{
		members:  members,
		payments: payments,
		debts:    debts,
		clock:    clk,
	}
}

func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	members, err := s.members.List(ctx, member.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}

	now := ledger.PeriodOf(s.clock.Now())

	collected, err := s.payments.MonthlyTotal(ctx, now.Year, int(now.Month))
	if err != nil {
		return nil, fmt.Errorf("summing monthly payments: %w", err)
	}

	recent, err := s.payments.Recent(ctx, RecentPaymentsLimit)
	if err != nil {
		return nil, fmt.Errorf("listing recent payments: %w", err)
	}

	outstanding, err := s.debts.ListDebts(ctx, ledger.DebtFilter{
		Statuses: []ledger.Status{ledger.StatusPending, ledger.StatusOverdue},
	})
	if err != nil {
		return nil, fmt.Errorf("listing outstanding debts: %w", err)
	}

	stats := &DashboardStats{
		TotalMembers:      len(members),
		ActiveMembers:     countActive(members),
		MonthlyCollection: collected,
		Outstanding:       ledger.TotalOutstanding(outstanding),
		RecentPayments:    recent,
		OverdueDebts:      []*ledger.Debt{},
	}

	for _, d := range outstanding {
		if d.Status == ledger.StatusOverdue {
			stats.OverdueDebts = append(stats.OverdueDebts, d)
		}
	}

	return stats, nil
}

func (s *Service) Summary(ctx context.Context, from, to time.Time) (*Summary, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	members, err := s.members.List(ctx, member.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}

	payments, err := s.payments.List(ctx, payment.ListFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}

	debts, err := s.debts.ListDebts(ctx, ledger.DebtFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing debts: %w", err)
	}

	sum := &Summary{
		GeneratedAt:     s.clock.Now(),
		From:            from,
		To:              to,
		TotalMembers:    len(members),
		ActiveMembers:   countActive(members),
		Outstanding:     ledger.TotalOutstanding(debts),
		MonthlyPayments: monthlyTotals(payments),
		TopContributors: topContributors(payments, members, topContributorsLimit),
		DebtsByStatus:   statusTotals(debts),
	}

	for _, p := range payments {
		sum.TotalPayments += p.Amount
	}

	return sum, nil
}

func countActive(members []*member.Member) int {
	n := 0

	for _, m := range members {
		if m.Status == member.StatusActive {
			n++
		}
	}

	return n
}

// monthlyTotals groups payments by the month they were booked to, oldest first.
func monthlyTotals(payments []*payment.Payment) []MonthlyTotal {
	byPeriod := map[ledger.Period]*MonthlyTotal{}

	for _, p := range payments {
		key := ledger.Period{Year: p.Year, Month: time.Month(p.Month)}

		mt, ok := byPeriod[key]
		if !ok {
			mt = &MonthlyTotal{Period: key}
			byPeriod[key] = mt
		}

		mt.Amount += p.Amount
		mt.Count++
	}

	out := make([]MonthlyTotal, 0, len(byPeriod))
	for _, mt := range byPeriod {
		out = append(out, *mt)
	}

	slices.SortFunc(out, func(a, b MonthlyTotal) int {
		if a.Period.Before(b.Period) {
			return -1
		}

		if b.Period.Before(a.Period) {
			return 1
		}

		return 0
	})

	return out
}

func topContributors(payments []*payment.Payment, members []*member.Member, limit int) []Contributor {
	names := make(map[uuid.UUID]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	totals := map[uuid.UUID]int64{}
	for _, p := range payments {
		totals[p.MemberID] += p.Amount
	}

	out := make([]Contributor, 0, len(totals))
	for id, amount := range totals {
		out = append(out, Contributor{MemberID: id, Name: names[id], Amount: amount})
	}

	slices.SortFunc(out, func(a, b Contributor) int {
		if c := cmp.Compare(b.Amount, a.Amount); c != 0 {
			return c
		}

		return cmp.Compare(a.Name, b.Name)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out
}

var statusOrder = []ledger.Status{ledger.StatusPending, ledger.StatusOverdue, ledger.StatusPaid}

func statusTotals(debts []*ledger.Debt) []StatusTotal {
	out := make([]StatusTotal, len(statusOrder))
	for i, st := range statusOrder {
		out[i].Status = st
	}

	for _, d := range debts {
		i := slices.Index(statusOrder, d.Status)
		if i < 0 {
			continue
		}

		out[i].Count++
		out[i].Amount += d.Amount
	}

	return out
}
