package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectDebtColumns = `
	id, member_id, parent_id, amount, type, description, due_date, status, month, year, created_at, updated_at
`

// scanDebt reads a debt row in selectDebtColumns order.
func scanDebt(s scanner) (*ledger.Debt, error) {
	var d ledger.Debt

	var typeStr, statusStr string

	if err := s.Scan(
		&d.ID, &d.MemberID, &d.ParentID, &d.Amount, &typeStr, &d.Description, &d.DueDate,
		&statusStr, &d.Month, &d.Year, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d.Type = ledger.Type(typeStr)
	d.Status = ledger.Status(statusStr)

	return &d, nil
}

func listDebts(ctx context.Context, q queryer, query string, args ...any) ([]*ledger.Debt, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing debts: %w", err)
	}
	defer rows.Close()

	var debts []*ledger.Debt

	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning debt: %w", err)
		}

		debts = append(debts, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating debt rows: %w", err)
	}

	return debts, nil
}

func insertDebt(ctx context.Context, q queryer, d *ledger.Debt) error {
	query := `
		INSERT INTO debts (member_id, parent_id, amount, type, description, due_date, status, month, year, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at
	`

	err := q.QueryRowContext(ctx, query,
		d.MemberID,
		d.ParentID,
		d.Amount,
		d.Type,
		d.Description,
		d.DueDate,
		d.Status,
		d.Month,
		d.Year,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return ledger.ErrDuplicateDebt
			case foreignKeyViolation:
				return fmt.Errorf("creating debt: %w", member.ErrNotFound)
			}
		}

		return fmt.Errorf("creating debt: %w", err)
	}

	return nil
}

func setStatus(ctx context.Context, q queryer, id uuid.UUID, status ledger.Status) error {
	query := `
		UPDATE debts
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	res, err := q.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating debt status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}

	if n == 0 {
		return ledger.ErrDebtNotFound
	}

	return nil
}

func (s *Store) ListDebts(ctx context.Context, filter ledger.DebtFilter) ([]*ledger.Debt, error) {
	query := `SELECT ` + selectDebtColumns + ` FROM debts WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.MemberID != nil {
		query += fmt.Sprintf(" AND member_id = $%d", argIdx)

		args = append(args, *filter.MemberID)
		argIdx++
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}

		query += fmt.Sprintf(" AND status = ANY($%d)", argIdx)

		args = append(args, statuses)
		argIdx++
	}

	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argIdx)

		args = append(args, *filter.Type)
		argIdx++
	}

	if filter.Year != nil {
		query += fmt.Sprintf(" AND year = $%d", argIdx)

		args = append(args, *filter.Year)
		argIdx++
	}

	if filter.Month != nil {
		query += fmt.Sprintf(" AND month = $%d", argIdx)

		args = append(args, *filter.Month)
		argIdx++
	}

	if filter.DueBefore != nil {
		query += fmt.Sprintf(" AND due_date < $%d", argIdx)

		args = append(args, *filter.DueBefore)
	}

	query += " ORDER BY due_date ASC, created_at ASC, id ASC"

	return listDebts(ctx, s.db, query, args...)
}

func (s *Store) GetDebt(ctx context.Context, id uuid.UUID) (*ledger.Debt, error) {
	query := `SELECT ` + selectDebtColumns + ` FROM debts WHERE id = $1`

	d, err := scanDebt(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrDebtNotFound
		}

		return nil, fmt.Errorf("getting debt: %w", err)
	}

	return d, nil
}

func (s *Store) CreateDebt(ctx context.Context, d *ledger.Debt) error {
	return insertDebt(ctx, s.db, d)
}

func (s *Store) UpdateDebtStatus(ctx context.Context, id uuid.UUID, status ledger.Status) error {
	return setStatus(ctx, s.db, id, status)
}

// DeleteDebt removes a debt inside the member's allocation lock. Remainders split
// from a remainder are handed to its parent first. Deleting a root leaves the
// foreign key to promote its remainder, which is safe once the root row is gone.
func (s *Store) DeleteDebt(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		memberID uuid.UUID
		parentID *uuid.UUID
	)

	err = tx.QueryRowContext(ctx, `SELECT member_id, parent_id FROM debts WHERE id = $1`, id).Scan(&memberID, &parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrDebtNotFound
	}

	if err != nil {
		return fmt.Errorf("loading debt: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, allocationLockKey(memberID)); err != nil {
		return fmt.Errorf("locking member %s: %w", memberID, err)
	}

	if parentID != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE debts SET parent_id = $2 WHERE parent_id = $1`, id, *parentID); err != nil {
			return fmt.Errorf("reparenting remainders: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM debts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting debt: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}

	if n == 0 {
		return ledger.ErrDebtNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	return nil
}

func allocationLockKey(memberID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte("allocation"))
	h.Write([]byte{0})
	h.Write(memberID[:])

	return int64(h.Sum64())
}

type allocationTx struct {
	tx       *sql.Tx
	memberID uuid.UUID
}

// BeginAllocation starts a transaction holding a per-member advisory lock. Concurrent
// allocations for the same member wait on the lock until the holder commits or rolls back.
func (s *Store) BeginAllocation(ctx context.Context, memberID uuid.UUID) (ledger.AllocationTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning allocation tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", allocationLockKey(memberID)); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring allocation lock: %w", err)
	}

	return &allocationTx{tx: dbTx, memberID: memberID}, nil
}

func (atx *allocationTx) Commit() error   { return atx.tx.Commit() }
func (atx *allocationTx) Rollback() error { return atx.tx.Rollback() }

func (atx *allocationTx) ListOutstanding(ctx context.Context) ([]*ledger.Debt, error) {
	query := `SELECT ` + selectDebtColumns + `
		FROM debts
		WHERE member_id = $1 AND status IN ('pending', 'overdue')
		ORDER BY due_date ASC, created_at ASC, id ASC
		FOR UPDATE`

	return listDebts(ctx, atx.tx, query, atx.memberID)
}

func (atx *allocationTx) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return setStatus(ctx, atx.tx, id, ledger.StatusPaid)
}

func (atx *allocationTx) CreateDebt(ctx context.Context, d *ledger.Debt) error {
	return insertDebt(ctx, atx.tx, d)
}
