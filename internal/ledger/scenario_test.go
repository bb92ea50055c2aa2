package ledger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestMemberLifecycle walks one member from registration through two payments and a
// second generation run in the same month.
func TestMemberLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	clk := clock.NewFake(date(2024, 4, 20))
	svc := ledger.NewService(store, store, clk)

	m := store.addMember(member.Member{
		Name:        "Abdul Rahman",
		JoinDate:    date(2024, 1, 15),
		MonthlyDues: 20000,
	})

	t.Run("HistoricalBackfill", func(t *testing.T) {
		res, err := svc.GenerateHistoricalDebts(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, res.Created)

		debts := store.debtsOf(m.ID)
		require.Len(t, debts, 4)

		wantDue := []time.Time{date(2024, 2, 1), date(2024, 3, 1), date(2024, 4, 1), date(2024, 5, 1)}
		for i, d := range debts {
			assert.Equal(t, int64(20000), d.Amount)
			assert.Equal(t, ledger.StatusPending, d.Status)
			assert.Equal(t, ledger.TypeMonthlyDues, d.Type)
			assert.Equal(t, i+1, d.Month)
			assert.Equal(t, 2024, d.Year)
			assert.Equal(t, wantDue[i], d.DueDate)
		}

		assert.Equal(t, "Monthly dues for January 2024", debts[0].Description)
		assert.Equal(t, int64(80000), store.member(m.ID).TotalDebt)
	})

	t.Run("PartialPayment", func(t *testing.T) {
		alloc, err := svc.ProcessPayment(ctx, m.ID, 25000, date(2024, 4, 20))
		require.NoError(t, err)

		require.Len(t, alloc.Paid, 2)
		assert.Equal(t, 1, alloc.Paid[0].Month)
		assert.Equal(t, 2, alloc.Paid[1].Month)

		require.NotNil(t, alloc.Remainder)
		assert.Equal(t, int64(15000), alloc.Remainder.Amount)
		assert.Equal(t, date(2024, 3, 1), alloc.Remainder.DueDate)
		assert.Equal(t, 2, alloc.Remainder.Month)
		assert.Equal(t, ledger.StatusPending, alloc.Remainder.Status)
		assert.Equal(t, "Monthly dues for February 2024 (Partial payment remaining)", alloc.Remainder.Description)
		require.NotNil(t, alloc.Remainder.ParentID)
		assert.Equal(t, alloc.Paid[1].ID, *alloc.Remainder.ParentID)

		assert.Equal(t, int64(25000), alloc.Applied)
		assert.Zero(t, alloc.Unapplied)
		assert.Equal(t, int64(55000), alloc.TotalDebt)
		assert.Equal(t, int64(55000), store.member(m.ID).TotalDebt)
	})

	t.Run("OverpaymentIsDiscarded", func(t *testing.T) {
		alloc, err := svc.ProcessPayment(ctx, m.ID, 100000, date(2024, 4, 25))
		require.NoError(t, err)

		assert.Len(t, alloc.Paid, 3)
		assert.Nil(t, alloc.Remainder)
		assert.Equal(t, int64(55000), alloc.Applied)
		assert.Equal(t, int64(45000), alloc.Unapplied)
		assert.Zero(t, store.member(m.ID).TotalDebt)

		for _, d := range store.debtsOf(m.ID) {
			assert.Equal(t, ledger.StatusPaid, d.Status, d.Description)
		}

		// The surplus is not carried to the next debt.
		clk.Set(date(2024, 5, 3))

		_, err = svc.GenerateMonthlyDebts(ctx)
		require.NoError(t, err)

		total, err := svc.UpdateMemberTotalDebt(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(20000), total)
	})
}

func TestGenerateMonthlyDebts_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 4, 20)))

	m := store.addMember(member.Member{Name: "Bilal", JoinDate: date(2024, 1, 15), MonthlyDues: 20000})

	_, err := svc.GenerateHistoricalDebts(ctx, m.ID)
	require.NoError(t, err)

	first, err := svc.GenerateMonthlyDebts(ctx)
	require.NoError(t, err)
	assert.Zero(t, first.Created)
	assert.Equal(t, 1, first.Existing)

	second, err := svc.GenerateMonthlyDebts(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Created)

	april, err := store.ListDebts(ctx, ledger.DebtFilter{MemberID: &m.ID, Year: new(2024), Month: new(4)})
	require.NoError(t, err)
	assert.Len(t, april, 1)
}

func TestGenerateMonthlyDebts_SkipsInactiveAndZeroDues(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 4, 20)))

	active := store.addMember(member.Member{Name: "Active", JoinDate: date(2024, 1, 1), MonthlyDues: 15000})
	inactive := store.addMember(member.Member{Name: "Away", Status: member.StatusInactive, JoinDate: date(2024, 1, 1), MonthlyDues: 15000})
	free := store.addMember(member.Member{Name: "Imam", JoinDate: date(2024, 1, 1)})

	res, err := svc.GenerateMonthlyDebts(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, store.debtsOf(active.ID), 1)
	assert.Empty(t, store.debtsOf(inactive.ID))
	assert.Empty(t, store.debtsOf(free.ID))
}

func TestGenerateHistoricalDebts_DuesChangeKeepsOldDebts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	clk := clock.NewFake(date(2024, 2, 10))
	svc := ledger.NewService(store, store, clk)

	m := store.addMember(member.Member{Name: "Hamza", JoinDate: date(2024, 1, 31), MonthlyDues: 10000})

	_, err := svc.GenerateHistoricalDebts(ctx, m.ID)
	require.NoError(t, err)

	store.mu.Lock()
	store.members[m.ID].MonthlyDues = 30000
	store.mu.Unlock()

	clk.Set(date(2024, 3, 2))

	_, err = svc.GenerateMonthlyDebts(ctx)
	require.NoError(t, err)

	debts := store.debtsOf(m.ID)
	require.Len(t, debts, 3)
	assert.Equal(t, int64(10000), debts[0].Amount)
	assert.Equal(t, int64(10000), debts[1].Amount)
	assert.Equal(t, int64(30000), debts[2].Amount)

	total, err := svc.UpdateMemberTotalDebt(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), total)
}

func TestGenerateHistoricalDebts_UnknownMember(t *testing.T) {
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 4, 20)))

	_, err := svc.GenerateHistoricalDebts(context.Background(), uuid.New())
	assert.ErrorIs(t, err, member.ErrNotFound)
}

func TestUpdateOverdueDebts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 3, 1)))

	m := store.addMember(member.Member{Name: "Yusuf", JoinDate: date(2024, 1, 1), MonthlyDues: 20000})

	past := store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 20000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 2, 1), Status: ledger.StatusPending, Month: 1, Year: 2024})
	future := store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 20000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 12, 1), Status: ledger.StatusPending, Month: 11, Year: 2024})
	today := store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 20000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 3, 1), Status: ledger.StatusPending, Month: 2, Year: 2024})
	settled := store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 5000, Type: ledger.TypeLateFee, DueDate: date(2024, 1, 10), Status: ledger.StatusPaid, Month: 1, Year: 2024})

	moved, err := svc.UpdateOverdueDebts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	status := func(id uuid.UUID) ledger.Status {
		d, err := store.GetDebt(ctx, id)
		require.NoError(t, err)

		return d.Status
	}

	assert.Equal(t, ledger.StatusOverdue, status(past.ID))
	assert.Equal(t, ledger.StatusPending, status(future.ID))
	assert.Equal(t, ledger.StatusPending, status(today.ID))
	assert.Equal(t, ledger.StatusPaid, status(settled.ID))

	// Overdue debts are never moved back, and the total is unchanged by the sweep.
	moved, err = svc.UpdateOverdueDebts(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)

	total, err := svc.UpdateMemberTotalDebt(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), total)
}

func TestProcessPayment_AllocationOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 6, 1)))

	m := store.addMember(member.Member{Name: "Zaid", JoinDate: date(2024, 1, 1), MonthlyDues: 10000})

	// Inserted newest first so creation order disagrees with due-date order.
	d3 := store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 10000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 4, 1), Status: ledger.StatusPending, Month: 3, Year: 2024, Description: "March"})
	d2 := store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 10000, Type: ledger.TypeLateFee, DueDate: date(2024, 3, 1), Status: ledger.StatusOverdue, Month: 2, Year: 2024, Description: "Late fee"})
	d1 := store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 10000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 2, 1), Status: ledger.StatusOverdue, Month: 1, Year: 2024, Description: "January"})

	alloc, err := svc.ProcessPayment(ctx, m.ID, 14000, date(2024, 6, 1))
	require.NoError(t, err)

	require.Len(t, alloc.Paid, 2)
	assert.Equal(t, d1.ID, alloc.Paid[0].ID)
	assert.Equal(t, d2.ID, alloc.Paid[1].ID)

	require.NotNil(t, alloc.Remainder)
	assert.Equal(t, int64(6000), alloc.Remainder.Amount)
	assert.Equal(t, d2.DueDate, alloc.Remainder.DueDate)
	assert.Equal(t, ledger.TypeLateFee, alloc.Remainder.Type)
	assert.Equal(t, 2, alloc.Remainder.Month)

	got, err := store.GetDebt(ctx, d3.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)

	remainders, err := store.ListDebts(ctx, ledger.DebtFilter{MemberID: &m.ID, Statuses: []ledger.Status{ledger.StatusPending}})
	require.NoError(t, err)
	assert.Len(t, remainders, 2)
}

func TestProcessPayment_RemainderOfRemainderKeepsSingleSuffix(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 6, 1)))

	m := store.addMember(member.Member{Name: "Umar", JoinDate: date(2024, 5, 1), MonthlyDues: 20000})
	store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 20000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 6, 1), Status: ledger.StatusPending, Month: 5, Year: 2024, Description: "Monthly dues for May 2024"})

	_, err := svc.ProcessPayment(ctx, m.ID, 5000, date(2024, 6, 1))
	require.NoError(t, err)

	alloc, err := svc.ProcessPayment(ctx, m.ID, 5000, date(2024, 6, 2))
	require.NoError(t, err)

	require.NotNil(t, alloc.Remainder)
	assert.Equal(t, int64(10000), alloc.Remainder.Amount)
	assert.Equal(t, "Monthly dues for May 2024 (Partial payment remaining)", alloc.Remainder.Description)
}

func TestProcessPayment_AppliedIsMinOfPaymentAndOutstanding(t *testing.T) {
	amounts := []int64{20000, 15000, 7500}
	outstanding := int64(42500)

	for _, pay := range []int64{1, 7500, 20000, 20001, 35000, 42500, 42501, 90000} {
		t.Run(fmt.Sprint(pay), func(t *testing.T) {
			ctx := context.Background()
			store := newMemStore()
			svc := ledger.NewService(store, store, clock.NewFake(date(2024, 6, 1)))

			m := store.addMember(member.Member{Name: "Saad", JoinDate: date(2024, 1, 1)})
			for i, a := range amounts {
				store.addDebt(ledger.Debt{MemberID: m.ID, Amount: a, Type: ledger.TypeCustom, DueDate: date(2024, time.Month(i+2), 1), Status: ledger.StatusPending, Month: i + 1, Year: 2024})
			}

			alloc, err := svc.ProcessPayment(ctx, m.ID, pay, date(2024, 6, 1))
			require.NoError(t, err)

			var closed int64
			for _, d := range alloc.Paid {
				closed += d.Amount
			}

			var rest int64
			if alloc.Remainder != nil {
				rest = alloc.Remainder.Amount
			}

			assert.Equal(t, min(pay, outstanding), alloc.Applied)
			assert.Equal(t, alloc.Applied, closed-rest)
			assert.Equal(t, pay-alloc.Applied, alloc.Unapplied)
			assert.Equal(t, outstanding-alloc.Applied, store.member(m.ID).TotalDebt)
		})
	}
}

func TestProcessPayment_InvalidAmount(t *testing.T) {
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 6, 1)))
	m := store.addMember(member.Member{Name: "Saad", JoinDate: date(2024, 1, 1)})

	for _, amount := range []int64{0, -100} {
		_, err := svc.ProcessPayment(context.Background(), m.ID, amount, date(2024, 6, 1))
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	}
}

func TestScheduleMonthlyDebtGeneration(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 3, 5)))

	m := store.addMember(member.Member{Name: "Ali", JoinDate: date(2024, 1, 1), MonthlyDues: 20000})
	store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 20000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 2, 1), Status: ledger.StatusPending, Month: 1, Year: 2024})
	store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 20000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 3, 1), Status: ledger.StatusPending, Month: 2, Year: 2024})

	report, err := svc.ScheduleMonthlyDebtGeneration(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Generation.Created)
	assert.Equal(t, 2, report.MarkedOverdue)
	assert.Equal(t, 1, report.Recalculated)
	assert.Equal(t, int64(60000), store.member(m.ID).TotalDebt)
}

func TestInitializeDebtSystem(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 3, 5)))

	a := store.addMember(member.Member{Name: "Ali", JoinDate: date(2024, 1, 20), MonthlyDues: 20000})
	b := store.addMember(member.Member{Name: "Omar", JoinDate: date(2023, 12, 1), MonthlyDues: 10000})
	store.addMember(member.Member{Name: "Away", Status: member.StatusInactive, JoinDate: date(2023, 1, 1), MonthlyDues: 10000})

	res, err := svc.InitializeDebtSystem(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Created)

	assert.Equal(t, int64(60000), store.member(a.ID).TotalDebt)
	assert.Equal(t, int64(40000), store.member(b.ID).TotalDebt)

	again, err := svc.InitializeDebtSystem(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Equal(t, 7, again.Existing)
}

func TestCreateDebt_Manual(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 3, 5)))

	m := store.addMember(member.Member{Name: "Ali", JoinDate: date(2024, 1, 20), MonthlyDues: 20000})

	d, err := svc.CreateDebt(ctx, ledger.CreateDebtParams{
		MemberID: m.ID,
		Amount:   5000,
		Type:     ledger.TypeLateFee,
		DueDate:  time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, date(2024, 3, 15), d.DueDate)
	assert.Equal(t, 3, d.Month)
	assert.Equal(t, "Late fee for March 2024", d.Description)
	assert.Equal(t, int64(5000), store.member(m.ID).TotalDebt)

	_, err = svc.CreateDebt(ctx, ledger.CreateDebtParams{MemberID: m.ID, Amount: 0, Type: ledger.TypeCustom, DueDate: date(2024, 3, 1)})
	assert.ErrorIs(t, err, ledger.ErrInvalidDebt)

	_, err = svc.UpdateDebtStatus(ctx, d.ID, ledger.StatusPaid)
	require.NoError(t, err)
	assert.Zero(t, store.member(m.ID).TotalDebt)

	require.NoError(t, svc.DeleteDebt(ctx, d.ID))
	assert.Empty(t, store.debtsOf(m.ID))
}

func TestUpdateDebtStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    ledger.Status
		to      ledger.Status
		wantErr bool
	}{
		{name: "PendingToOverdue", from: ledger.StatusPending, to: ledger.StatusOverdue},
		{name: "PendingToPaid", from: ledger.StatusPending, to: ledger.StatusPaid},
		{name: "OverdueToPaid", from: ledger.StatusOverdue, to: ledger.StatusPaid},
		{name: "SameStatus", from: ledger.StatusOverdue, to: ledger.StatusOverdue},
		{name: "PaidToPending", from: ledger.StatusPaid, to: ledger.StatusPending, wantErr: true},
		{name: "PaidToOverdue", from: ledger.StatusPaid, to: ledger.StatusOverdue, wantErr: true},
		{name: "OverdueToPending", from: ledger.StatusOverdue, to: ledger.StatusPending, wantErr: true},
		{name: "Unknown", from: ledger.StatusPending, to: ledger.Status("cancelled"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newMemStore()
			svc := ledger.NewService(store, store, clock.NewFake(date(2024, 6, 1)))

			m := store.addMember(member.Member{Name: "Bilal", JoinDate: date(2024, 1, 1)})
			d := store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 20000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 5, 1), Status: tt.from, Month: 4, Year: 2024})
			before, err := svc.UpdateMemberTotalDebt(ctx, m.ID)
			require.NoError(t, err)

			got, err := svc.UpdateDebtStatus(ctx, d.ID, tt.to)
			stored, _ := store.GetDebt(ctx, d.ID)

			if tt.wantErr {
				require.ErrorIs(t, err, ledger.ErrInvalidDebt)
				assert.Equal(t, tt.from, stored.Status)
				assert.Equal(t, before, store.member(m.ID).TotalDebt)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
			assert.Equal(t, tt.to, stored.Status)
		})
	}
}

// Removing a remainder in the middle of a chain hands its child to its own parent,
// so the child never becomes a second root for the same period.
func TestDeleteDebt_ReparentsRemainder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := ledger.NewService(store, store, clock.NewFake(date(2024, 6, 1)))

	m := store.addMember(member.Member{Name: "Umar", JoinDate: date(2024, 4, 1), MonthlyDues: 20000})
	root := store.addDebt(ledger.Debt{MemberID: m.ID, Amount: 20000, Type: ledger.TypeMonthlyDues, DueDate: date(2024, 5, 1), Status: ledger.StatusPending, Month: 4, Year: 2024})

	first, err := svc.ProcessPayment(ctx, m.ID, 5000, date(2024, 6, 1))
	require.NoError(t, err)
	require.NotNil(t, first.Remainder)

	second, err := svc.ProcessPayment(ctx, m.ID, 5000, date(2024, 6, 2))
	require.NoError(t, err)
	require.NotNil(t, second.Remainder)

	require.NoError(t, svc.DeleteDebt(ctx, first.Remainder.ID))

	last, err := store.GetDebt(ctx, second.Remainder.ID)
	require.NoError(t, err)
	require.NotNil(t, last.ParentID)
	assert.Equal(t, root.ID, *last.ParentID)

	var roots int
	for _, d := range store.debtsOf(m.ID) {
		if d.Type == ledger.TypeMonthlyDues && d.ParentID == nil && d.Month == 4 {
			roots++
		}
	}
	assert.Equal(t, 1, roots)
}
