package ledger_test

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
)

// memStore is an in-memory MemberRepository and DebtRepository.
// Reads return copies so callers cannot change stored rows behind its back.
type memStore struct {
	mu      sync.Mutex
	members map[uuid.UUID]*member.Member
	debts   map[uuid.UUID]*ledger.Debt
	seq     int
}

func newMemStore() *memStore {
	return &memStore{
		members: make(map[uuid.UUID]*member.Member),
		debts:   make(map[uuid.UUID]*ledger.Debt),
	}
}

func (s *memStore) addMember(m member.Member) *member.Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	if m.Status == "" {
		m.Status = member.StatusActive
	}

	s.members[m.ID] = &m

	return new(m)
}

func (s *memStore) addDebt(d ledger.Debt) *ledger.Debt {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(&d)

	return new(d)
}

func (s *memStore) member(id uuid.UUID) member.Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.members[id]
}

func (s *memStore) debtsOf(id uuid.UUID) []*ledger.Debt {
	got, _ := s.ListDebts(context.Background(), ledger.DebtFilter{MemberID: &id})
	return got
}

func (s *memStore) insertLocked(d *ledger.Debt) {
	s.seq++

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
	}

	s.debts[d.ID] = new(*d)
}

func (s *memStore) ListMembers(_ context.Context, filter member.ListFilter) ([]*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*member.Member

	for _, m := range s.members {
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}

		out = append(out, new(*m))
	}

	slices.SortFunc(out, func(a, b *member.Member) int { return a.CreatedAt.Compare(b.CreatedAt) })

	return out, nil
}

func (s *memStore) GetMember(_ context.Context, id uuid.UUID) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return nil, member.ErrNotFound
	}

	return new(*m), nil
}

func (s *memStore) UpdateTotalDebt(_ context.Context, id uuid.UUID, total int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return member.ErrNotFound
	}

	m.TotalDebt = total

	return nil
}

func (s *memStore) ListDebts(_ context.Context, filter ledger.DebtFilter) ([]*ledger.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.Debt

	for _, d := range s.debts {
		if filter.MemberID != nil && d.MemberID != *filter.MemberID {
			continue
		}

		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, d.Status) {
			continue
		}

		if filter.Type != nil && d.Type != *filter.Type {
			continue
		}

		if filter.Year != nil && d.Year != *filter.Year {
			continue
		}

		if filter.Month != nil && d.Month != *filter.Month {
			continue
		}

		if filter.DueBefore != nil && !d.DueDate.Before(*filter.DueBefore) {
			continue
		}

		out = append(out, new(*d))
	}

	ledger.SortForAllocation(out)

	return out, nil
}

func (s *memStore) GetDebt(_ context.Context, id uuid.UUID) (*ledger.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.debts[id]
	if !ok {
		return nil, ledger.ErrDebtNotFound
	}

	return new(*d), nil
}

func (s *memStore) CreateDebt(_ context.Context, d *ledger.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Type == ledger.TypeMonthlyDues && d.ParentID == nil {
		for _, e := range s.debts {
			if e.MemberID == d.MemberID && e.Type == ledger.TypeMonthlyDues && e.ParentID == nil &&
				e.Year == d.Year && e.Month == d.Month {
				return ledger.ErrDuplicateDebt
			}
		}
	}

	s.insertLocked(d)

	return nil
}

func (s *memStore) UpdateDebtStatus(_ context.Context, id uuid.UUID, status ledger.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.debts[id]
	if !ok {
		return ledger.ErrDebtNotFound
	}

	d.Status = status

	return nil
}

func (s *memStore) DeleteDebt(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gone, ok := s.debts[id]
	if !ok {
		return ledger.ErrDebtNotFound
	}

	for _, d := range s.debts {
		if d.ParentID != nil && *d.ParentID == id {
			d.ParentID = gone.ParentID
		}
	}

	delete(s.debts, id)

	return nil
}

func (s *memStore) BeginAllocation(_ context.Context, memberID uuid.UUID) (ledger.AllocationTx, error) {
	return &memTx{store: s, memberID: memberID}, nil
}

// memTx stages writes and applies them on Commit.
type memTx struct {
	store    *memStore
	memberID uuid.UUID
	paid     []uuid.UUID
	created  []*ledger.Debt
}

func (t *memTx) ListOutstanding(ctx context.Context) ([]*ledger.Debt, error) {
	return t.store.ListDebts(ctx, ledger.DebtFilter{
		MemberID: &t.memberID,
		Statuses: []ledger.Status{ledger.StatusPending, ledger.StatusOverdue},
	})
}

func (t *memTx) MarkPaid(_ context.Context, id uuid.UUID) error {
	t.paid = append(t.paid, id)
	return nil
}

func (t *memTx) CreateDebt(_ context.Context, d *ledger.Debt) error {
	d.ID = uuid.New()
	t.created = append(t.created, d)

	return nil
}

func (t *memTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, id := range t.paid {
		t.store.debts[id].Status = ledger.StatusPaid
	}

	for _, d := range t.created {
		t.store.insertLocked(d)
	}

	return nil
}

func (t *memTx) Rollback() error {
	t.paid, t.created = nil, nil
	return nil
}
