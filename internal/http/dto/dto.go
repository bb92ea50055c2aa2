// Package dto holds the JSON shapes shared by the HTTP handlers.
package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

type Member struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Phone       *string       `json:"phone,omitempty"`
	Address     *string       `json:"address,omitempty"`
	Status      member.Status `json:"status"`
	JoinDate    string        `json:"join_date"`
	MonthlyDues int64         `json:"monthly_dues"`
	TotalDebt   int64         `json:"total_debt"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
}

func FromMember(m *member.Member) Member {
	return Member{
		ID:          m.ID,
		Name:        m.Name,
		Phone:       m.Phone,
		Address:     m.Address,
		Status:      m.Status,
		JoinDate:    m.JoinDate.Format(time.DateOnly),
		MonthlyDues: m.MonthlyDues,
		TotalDebt:   m.TotalDebt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func FromMembers(ms []*member.Member) []Member {
	out := make([]Member, len(ms))
	for i, m := range ms {
		out[i] = FromMember(m)
	}

	return out
}

type Debt struct {
	ID          uuid.UUID     `json:"id"`
	MemberID    uuid.UUID     `json:"member_id"`
	ParentID    *uuid.UUID    `json:"parent_id,omitempty"`
	Amount      int64         `json:"amount"`
	Type        ledger.Type   `json:"type"`
	Description string        `json:"description"`
	DueDate     string        `json:"due_date"`
	Status      ledger.Status `json:"status"`
	Month       int           `json:"month"`
	Year        int           `json:"year"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
}

func FromDebt(d *ledger.Debt) Debt {
	return Debt{
		ID:          d.ID,
		MemberID:    d.MemberID,
		ParentID:    d.ParentID,
		Amount:      d.Amount,
		Type:        d.Type,
		Description: d.Description,
		DueDate:     d.DueDate.Format(time.DateOnly),
		Status:      d.Status,
		Month:       d.Month,
		Year:        d.Year,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func FromDebts(ds []*ledger.Debt) []Debt {
	out := make([]Debt, len(ds))
	for i, d := range ds {
		out[i] = FromDebt(d)
	}

	return out
}

type Payment struct {
	ID            uuid.UUID  `json:"id"`
	MemberID      uuid.UUID  `json:"member_id"`
	Amount        int64      `json:"amount"`
	PaymentDate   string     `json:"payment_date"`
	Month         int        `json:"month"`
	Year          int        `json:"year"`
	Notes         *string    `json:"notes,omitempty"`
	ReceiptNumber *string    `json:"receipt_number,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

func FromPayment(p *payment.Payment) Payment {
	return Payment{
		ID:            p.ID,
		MemberID:      p.MemberID,
		Amount:        p.Amount,
		PaymentDate:   p.PaymentDate.Format(time.DateOnly),
		Month:         p.Month,
		Year:          p.Year,
		Notes:         p.Notes,
		ReceiptNumber: p.ReceiptNumber,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func FromPayments(ps []*payment.Payment) []Payment {
	out := make([]Payment, len(ps))
	for i, p := range ps {
		out[i] = FromPayment(p)
	}

	return out
}

type Allocation struct {
	Applied   int64  `json:"applied"`
	Unapplied int64  `json:"unapplied"`
	TotalDebt int64  `json:"total_debt"`
	Paid      []Debt `json:"paid"`
	Remainder *Debt  `json:"remainder,omitempty"`
}

func FromAllocation(a *ledger.Allocation) *Allocation {
	if a == nil {
		return nil
	}

	out := &Allocation{
		Applied:   a.Applied,
		Unapplied: a.Unapplied,
		TotalDebt: a.TotalDebt,
		Paid:      FromDebts(a.Paid),
	}

	if a.Remainder != nil {
		r := FromDebt(a.Remainder)
		out.Remainder = &r
	}

	return out
}

type Failure struct {
	MemberID uuid.UUID `json:"member_id"`
	Period   string    `json:"period,omitempty"`
	Error    string    `json:"error"`
}

type Generation struct {
	Created  int       `json:"created"`
	Existing int       `json:"existing"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures"`
}

func FromGeneration(g *ledger.GenerationResult) *Generation {
	if g == nil {
		return nil
	}

	out := &Generation{
		Created:  g.Created,
		Existing: g.Existing,
		Skipped:  g.Skipped,
		Failures: make([]Failure, 0, len(g.Failures)),
	}

	for _, f := range g.Failures {
		fr := Failure{MemberID: f.MemberID, Error: f.Err.Error()}
		if f.Period.Year != 0 {
			fr.Period = f.Period.String()
		}

		out.Failures = append(out.Failures, fr)
	}

	return out
}

// Date accepts "2006-01-02" or RFC 3339 in request bodies.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	t, err := ParseDate(s)
	if err != nil {
		return err
	}

	d.Time = t

	return nil
}

// ParseDate reads "2006-01-02" as UTC midnight, falling back to RFC 3339.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}

	return t, nil
}
