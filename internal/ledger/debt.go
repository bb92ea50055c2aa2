package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDebtNotFound  = errors.New("debt not found")
	ErrDuplicateDebt = errors.New("monthly debt already exists for period")
	ErrInvalidAmount = errors.New("payment amount must be positive")
	ErrInvalidDebt   = errors.New("invalid debt")
)

// Type classifies what a debt was raised for.
type Type string

const (
	TypeMonthlyDues Type = "monthly_dues"
	TypeCustom      Type = "custom"
	TypeLateFee     Type = "late_fee"
)

// Status represents the lifecycle state of a debt.
// Debts move pending -> overdue -> paid, or pending -> paid; never backwards.
type Status string

const (
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
	StatusPaid    Status = "paid"
)

// PartialRemainderSuffix marks a debt created for the unpaid part of a partially covered debt.
const PartialRemainderSuffix = " (Partial payment remaining)"

// Debt is a single owed amount. Amount is in paisa and always positive.
type Debt struct {
	ID       uuid.UUID
	MemberID uuid.UUID
	// ParentID links a partial remainder to the debt it was split from.
	ParentID    *uuid.UUID
	Amount      int64
	Type        Type
	Description string
	DueDate     time.Time
	Status      Status
	Month       int
	Year        int
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// Outstanding reports whether the debt still counts towards the member's total.
func (d *Debt) Outstanding() bool {
	return d.Status == StatusPending || d.Status == StatusOverdue
}

var outstandingStatuses = []Status{StatusPending, StatusOverdue}

type DebtFilter struct {
	MemberID *uuid.UUID
	Statuses []Status
	Type     *Type
	Year     *int
	Month    *int
	// DueBefore keeps debts whose due date is strictly before the given instant.
	DueBefore *time.Time
}

// TotalOutstanding sums the amounts of the outstanding debts in ds.
func TotalOutstanding(ds []*Debt) int64 {
	var total int64

	for _, d := range ds {
		if d.Outstanding() {
			total += d.Amount
		}
	}

	return total
}
