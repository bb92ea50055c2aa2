package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

var paidOn = time.Date(2024, 4, 20, 14, 5, 0, 0, time.UTC)

func TestService_Record(t *testing.T) {
	memberID := uuid.New()
	paymentID := uuid.New()

	params := payment.CreateParams{
		MemberID:      memberID,
		Amount:        25000,
		PaymentDate:   paidOn,
		ReceiptNumber: new(" R-0042 "),
	}

	type testCase struct {
		name      string
		params    payment.CreateParams
		setupMock func(repo *payment.MockRepository, l *payment.MockLedger)
		check     func(t *testing.T, got *payment.Receipt, err error)
	}

	tests := []testCase{
		{
			name:   "Success",
			params: params,
			setupMock: func(repo *payment.MockRepository, l *payment.MockLedger) {
				repo.EXPECT().
					CreatePayment(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *payment.Payment) error {
						assert.Equal(t, 4, p.Month)
						assert.Equal(t, 2024, p.Year)
						assert.Equal(t, time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), p.PaymentDate)
						assert.Equal(t, "R-0042", *p.ReceiptNumber)

						p.ID = paymentID

						return nil
					})
				l.EXPECT().
					ProcessPayment(gomock.Any(), memberID, int64(25000), gomock.Any()).
					Return(&ledger.Allocation{Applied: 25000, TotalDebt: 55000}, nil)
			},
			check: func(t *testing.T, got *payment.Receipt, err error) {
				require.NoError(t, err)
				assert.Equal(t, paymentID, got.Payment.ID)
				assert.Equal(t, int64(55000), got.Allocation.TotalDebt)
			},
		},
		{
			name:   "AllocationFailsPaymentKept",
			params: params,
			setupMock: func(repo *payment.MockRepository, l *payment.MockLedger) {
				repo.EXPECT().
					CreatePayment(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *payment.Payment) error {
						p.ID = paymentID
						return nil
					})
				l.EXPECT().
					ProcessPayment(gomock.Any(), memberID, int64(25000), gomock.Any()).
					Return(nil, errors.New("lock timeout"))
				l.EXPECT().UpdateMemberTotalDebt(gomock.Any(), memberID).Return(int64(80000), nil)
			},
			check: func(t *testing.T, got *payment.Receipt, err error) {
				var allocErr *payment.AllocationError
				require.ErrorAs(t, err, &allocErr)
				assert.Equal(t, paymentID, allocErr.PaymentID)

				require.NotNil(t, got)
				assert.Equal(t, paymentID, got.Payment.ID)
				assert.Nil(t, got.Allocation)
			},
		},
		{
			name:   "RecalculationFailsAllocationKept",
			params: params,
			setupMock: func(repo *payment.MockRepository, l *payment.MockLedger) {
				repo.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(nil)
				l.EXPECT().
					ProcessPayment(gomock.Any(), memberID, int64(25000), gomock.Any()).
					Return(&ledger.Allocation{Applied: 25000}, &ledger.RecalculationError{MemberID: memberID, Err: errors.New("boom")})
			},
			check: func(t *testing.T, got *payment.Receipt, err error) {
				var recalcErr *ledger.RecalculationError
				require.ErrorAs(t, err, &recalcErr)

				var allocErr *payment.AllocationError
				assert.False(t, errors.As(err, &allocErr))
				require.NotNil(t, got.Allocation)
			},
		},
		{
			name:   "StoreFails",
			params: params,
			setupMock: func(repo *payment.MockRepository, _ *payment.MockLedger) {
				repo.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
			},
			check: func(t *testing.T, got *payment.Receipt, err error) {
				assert.ErrorContains(t, err, "db down")
				assert.Nil(t, got)
			},
		},
		{
			name:   "ZeroAmount",
			params: payment.CreateParams{MemberID: memberID, PaymentDate: paidOn},
			check: func(t *testing.T, got *payment.Receipt, err error) {
				assert.ErrorIs(t, err, payment.ErrInvalid)
				assert.Nil(t, got)
			},
		},
		{
			name:   "AmountTooLarge",
			params: payment.CreateParams{MemberID: memberID, Amount: 1000000, PaymentDate: paidOn},
			check: func(t *testing.T, got *payment.Receipt, err error) {
				assert.ErrorIs(t, err, payment.ErrInvalid)
			},
		},
		{
			name:   "ReceiptTooLong",
			params: payment.CreateParams{MemberID: memberID, Amount: 100, PaymentDate: paidOn, ReceiptNumber: new("R-000000000000000000000000000000000000000000000000001")},
			check: func(t *testing.T, got *payment.Receipt, err error) {
				assert.ErrorIs(t, err, payment.ErrInvalid)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			repo := payment.NewMockRepository(ctrl)
			l := payment.NewMockLedger(ctrl)

			if tt.setupMock != nil {
				tt.setupMock(repo, l)
			}

			svc := payment.NewService(repo, l)
			got, err := svc.Record(context.Background(), tt.params)
			tt.check(t, got, err)
		})
	}
}

func TestService_Update(t *testing.T) {
	memberID := uuid.New()
	id := uuid.New()

	stored := func() *payment.Payment {
		return &payment.Payment{ID: id, MemberID: memberID, Amount: 20000, PaymentDate: paidOn, Month: 4, Year: 2024}
	}

	t.Run("AmountChangeReallocates", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := payment.NewMockRepository(ctrl)
		l := payment.NewMockLedger(ctrl)

		repo.EXPECT().GetPayment(gomock.Any(), id).Return(stored(), nil)
		repo.EXPECT().UpdatePayment(gomock.Any(), gomock.Any()).Return(nil)
		l.EXPECT().ProcessPayment(gomock.Any(), memberID, int64(30000), gomock.Any()).Return(&ledger.Allocation{Applied: 30000}, nil)

		got, err := payment.NewService(repo, l).Update(context.Background(), id, payment.UpdateParams{Amount: new(int64(30000))})
		require.NoError(t, err)
		assert.Equal(t, int64(30000), got.Payment.Amount)
		assert.NotNil(t, got.Allocation)
	})

	t.Run("NotesOnlyDoesNotReallocate", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := payment.NewMockRepository(ctrl)
		l := payment.NewMockLedger(ctrl)

		repo.EXPECT().GetPayment(gomock.Any(), id).Return(stored(), nil)
		repo.EXPECT().UpdatePayment(gomock.Any(), gomock.Any()).Return(nil)

		got, err := payment.NewService(repo, l).Update(context.Background(), id, payment.UpdateParams{
			Amount: new(int64(20000)),
			Notes:  new("paid at jummah"),
		})
		require.NoError(t, err)
		assert.Equal(t, "paid at jummah", *got.Payment.Notes)
		assert.Nil(t, got.Allocation)
	})
}

func TestService_Delete(t *testing.T) {
	memberID := uuid.New()
	id := uuid.New()

	t.Run("RecalculatesWithoutReversal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := payment.NewMockRepository(ctrl)
		l := payment.NewMockLedger(ctrl)

		gomock.InOrder(
			repo.EXPECT().GetPayment(gomock.Any(), id).Return(&payment.Payment{ID: id, MemberID: memberID}, nil),
			repo.EXPECT().DeletePayment(gomock.Any(), id).Return(nil),
			l.EXPECT().UpdateMemberTotalDebt(gomock.Any(), memberID).Return(int64(0), nil),
		)

		require.NoError(t, payment.NewService(repo, l).Delete(context.Background(), id))
	})

	t.Run("NotFound", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := payment.NewMockRepository(ctrl)
		l := payment.NewMockLedger(ctrl)

		repo.EXPECT().GetPayment(gomock.Any(), id).Return(nil, payment.ErrNotFound)

		assert.ErrorIs(t, payment.NewService(repo, l).Delete(context.Background(), id), payment.ErrNotFound)
	})

	t.Run("RecalcFailure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := payment.NewMockRepository(ctrl)
		l := payment.NewMockLedger(ctrl)

		repo.EXPECT().GetPayment(gomock.Any(), id).Return(&payment.Payment{ID: id, MemberID: memberID}, nil)
		repo.EXPECT().DeletePayment(gomock.Any(), id).Return(nil)
		l.EXPECT().UpdateMemberTotalDebt(gomock.Any(), memberID).Return(int64(0), errors.New("boom"))

		var recalcErr *ledger.RecalculationError
		assert.ErrorAs(t, payment.NewService(repo, l).Delete(context.Background(), id), &recalcErr)
	})
}

func TestService_MonthlyTotal(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := payment.NewMockRepository(ctrl)

	repo.EXPECT().
		SumPayments(gomock.Any(), payment.ListFilter{Year: new(2024), Month: new(4)}).
		Return(int64(125000), nil)

	got, err := payment.NewService(repo, payment.NewMockLedger(ctrl)).MonthlyTotal(context.Background(), 2024, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(125000), got)
}
