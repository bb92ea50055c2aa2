package member

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("member not found")
	ErrInvalid  = errors.New("invalid member")
)

// Status represents whether a member currently owes monthly dues.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Member is a committee member. Amounts are in paisa.
type Member struct {
	ID          uuid.UUID
	Name        string
	Phone       *string
	Address     *string
	Status      Status
	JoinDate    time.Time
	MonthlyDues int64
	// TotalDebt is maintained by the ledger; callers never set it.
	TotalDebt int64
	CreatedAt time.Time
	UpdatedAt *time.Time
}
