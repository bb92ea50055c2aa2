package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

const foreignKeyViolation = "23503"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectPaymentColumns = `
	id, member_id, amount, payment_date, month, year, notes, receipt_number, created_at, updated_at
`

func scanPayment(s scanner) (*payment.Payment, error) {
	var p payment.Payment

	if err := s.Scan(
		&p.ID, &p.MemberID, &p.Amount, &p.PaymentDate, &p.Month, &p.Year,
		&p.Notes, &p.ReceiptNumber, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &p, nil
}

// where renders the filter as a WHERE clause and its arguments.
func where(filter payment.ListFilter) (string, []any) {
	clause := " WHERE TRUE"

	var args []any

	argIdx := 1

	if filter.MemberID != nil {
		clause += fmt.Sprintf(" AND member_id = $%d", argIdx)

		args = append(args, *filter.MemberID)
		argIdx++
	}

	if filter.Year != nil {
		clause += fmt.Sprintf(" AND year = $%d", argIdx)

		args = append(args, *filter.Year)
		argIdx++
	}

	if filter.Month != nil {
		clause += fmt.Sprintf(" AND month = $%d", argIdx)

		args = append(args, *filter.Month)
		argIdx++
	}

	if filter.From != nil {
		clause += fmt.Sprintf(" AND payment_date >= $%d", argIdx)

		args = append(args, *filter.From)
		argIdx++
	}

	if filter.To != nil {
		clause += fmt.Sprintf(" AND payment_date <= $%d", argIdx)

		args = append(args, *filter.To)
	}

	return clause, args
}

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (member_id, amount, payment_date, month, year, notes, receipt_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.MemberID,
		p.Amount,
		p.PaymentDate,
		p.Month,
		p.Year,
		p.Notes,
		p.ReceiptNumber,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("creating payment: %w", member.ErrNotFound)
		}

		return fmt.Errorf("creating payment: %w", err)
	}

	return nil
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + selectPaymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrNotFound
		}

		return nil, fmt.Errorf("getting payment: %w", err)
	}

	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	clause, args := where(filter)
	query := `SELECT ` + selectPaymentColumns + ` FROM payments` + clause +
		` ORDER BY payment_date DESC, created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}

		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment rows: %w", err)
	}

	return payments, nil
}

func (s *Store) SumPayments(ctx context.Context, filter payment.ListFilter) (int64, error) {
	clause, args := where(filter)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments`+clause, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing payments: %w", err)
	}

	return total, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments
		SET amount = $1, payment_date = $2, month = $3, year = $4, notes = $5, receipt_number = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.Amount,
		p.PaymentDate,
		p.Month,
		p.Year,
		p.Notes,
		p.ReceiptNumber,
		p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payment.ErrNotFound
		}

		return fmt.Errorf("updating payment: %w", err)
	}

	return nil
}

func (s *Store) DeletePayment(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting payment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}

	if n == 0 {
		return payment.ErrNotFound
	}

	return nil
}
