package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
)

var (
	ErrNotFound = errors.New("payment not found")
	ErrInvalid  = errors.New("invalid payment")
)

// Payment is money received from a member. Amount is in paisa.
type Payment struct {
	ID            uuid.UUID
	MemberID      uuid.UUID
	Amount        int64
	PaymentDate   time.Time
	Month         int
	Year          int
	Notes         *string
	ReceiptNumber *string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// Receipt is the outcome of recording a payment. Allocation is nil when the payment was
// stored but could not be applied to the member's debts.
type Receipt struct {
	Payment    *Payment
	Allocation *ledger.Allocation
}

// AllocationError means the payment was persisted but allocating it against the
// member's debts failed. The payment should be re-allocated once the cause is fixed.
type AllocationError struct {
	PaymentID uuid.UUID
	Err       error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("payment %s recorded but not allocated: %v", e.PaymentID, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }
