package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/money"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

// MembersCSV writes the member roster, one row per member.
func (s *Service) MembersCSV(ctx context.Context, w io.Writer, filter member.ListFilter) (int, error) {
	members, err := s.members.List(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("listing members: %w", err)
	}

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Phone", "Address", "Status", "Join Date", "Monthly Dues", "Total Debt"})

	for _, m := range members {
		_ = cw.Write([]string{
			m.Name,
			deref(m.Phone),
			deref(m.Address),
			string(m.Status),
			m.JoinDate.Format(time.DateOnly),
			money.Format(m.MonthlyDues),
			money.Format(m.TotalDebt),
		})
	}

	return len(members), flush(cw)
}

// PaymentsCSV writes payments received in the filter's range, newest first.
func (s *Service) PaymentsCSV(ctx context.Context, w io.Writer, filter payment.ListFilter) (int, error) {
	payments, err := s.payments.List(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("listing payments: %w", err)
	}

	names, err := s.memberNames(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Date", "Member", "Amount", "Month", "Year", "Receipt Number", "Notes"})

	for _, p := range payments {
		_ = cw.Write([]string{
			p.PaymentDate.Format(time.DateOnly),
			names[p.MemberID],
			money.Format(p.Amount),
			strconv.Itoa(p.Month),
			strconv.Itoa(p.Year),
			deref(p.ReceiptNumber),
			deref(p.Notes),
		})
	}

	return len(payments), flush(cw)
}

func (s *Service) DebtsCSV(ctx context.Context, w io.Writer, filter ledger.DebtFilter) (int, error) {
	debts, err := s.debts.ListDebts(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("listing debts: %w", err)
	}

	names, err := s.memberNames(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Member", "Description", "Type", "Amount", "Due Date", "Status", "Period"})

	for _, d := range debts {
		_ = cw.Write([]string{
			names[d.MemberID],
			d.Description,
			string(d.Type),
			money.Format(d.Amount),
			d.DueDate.Format(time.DateOnly),
			string(d.Status),
			ledger.Period{Year: d.Year, Month: time.Month(d.Month)}.String(),
		})
	}

	return len(debts), flush(cw)
}

// SummaryCSV writes the summary report as consecutive titled sections separated by blank rows.
func (s *Service) SummaryCSV(ctx context.Context, w io.Writer, from, to time.Time) error {
	sum, err := s.Summary(ctx, from, to)
	if err != nil {
		return err
	}

	return WriteSummary(w, sum)
}

func WriteSummary(w io.Writer, sum *Summary) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"Mosque Committee Summary Report"},
		{"Generated On", sum.GeneratedAt.Format(time.DateOnly)},
		{"Date Range", sum.From.Format(time.DateOnly) + " to " + sum.To.Format(time.DateOnly)},
		{},
		{"OVERVIEW"},
		{"Total Members", strconv.Itoa(sum.TotalMembers)},
		{"Active Members", strconv.Itoa(sum.ActiveMembers)},
		{"Total Payments", money.Format(sum.TotalPayments)},
		{"Outstanding Debts", money.Format(sum.Outstanding)},
		{},
		{"MONTHLY PAYMENTS"},
		{"Month", "Amount", "Payments Count"},
	}

	for _, mt := range sum.MonthlyPayments {
		rows = append(rows, []string{mt.Period.String(), money.Format(mt.Amount), strconv.Itoa(mt.Count)})
	}

	rows = append(rows, []string{}, []string{"TOP CONTRIBUTORS"}, []string{"Name", "Amount"})

	for _, c := range sum.TopContributors {
		rows = append(rows, []string{c.Name, money.Format(c.Amount)})
	}

	rows = append(rows, []string{}, []string{"DEBTS BY STATUS"}, []string{"Status", "Count", "Amount"})

	for _, st := range sum.DebtsByStatus {
		rows = append(rows, []string{string(st.Status), strconv.Itoa(st.Count), money.Format(st.Amount)})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	return nil
}

func (s *Service) memberNames(ctx context.Context) (map[uuid.UUID]string, error) {
	members, err := s.members.List(ctx, member.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}

	names := make(map[uuid.UUID]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	return names, nil
}

// flush surfaces the first write error, which csv.Writer otherwise keeps to itself.
func flush(cw *csv.Writer) error {
	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
