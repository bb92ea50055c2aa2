package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/member"
)

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

const selectMemberColumns = `
	id, name, phone, address, status, join_date, monthly_dues, total_debt, created_at, updated_at
`

func scanMember(s scanner) (*member.Member, error) {
	var m member.Member

	var status string

	if err := s.Scan(
		&m.ID, &m.Name, &m.Phone, &m.Address, &status, &m.JoinDate,
		&m.MonthlyDues, &m.TotalDebt, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.Status = member.Status(status)

	return &m, nil
}

func (s *Store) CreateMember(ctx context.Context, m *member.Member) error {
	query := `
		INSERT INTO members (name, phone, address, status, join_date, monthly_dues, total_debt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, NOW())
		RETURNING id, total_debt, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		m.Name,
		m.Phone,
		m.Address,
		m.Status,
		m.JoinDate,
		m.MonthlyDues,
	).Scan(&m.ID, &m.TotalDebt, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating member: %w", err)
	}

	return nil
}

func (s *Store) GetMember(ctx context.Context, id uuid.UUID) (*member.Member, error) {
	query := `SELECT ` + selectMemberColumns + ` FROM members WHERE id = $1`

	m, err := scanMember(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, member.ErrNotFound
		}

		return nil, fmt.Errorf("getting member: %w", err)
	}

	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, filter member.ListFilter) ([]*member.Member, error) {
	query := `SELECT ` + selectMemberColumns + ` FROM members WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.Query != "" {
		query += fmt.Sprintf(
			" AND (name ILIKE '%%' || $%[1]d || '%%' OR phone ILIKE '%%' || $%[1]d || '%%' OR address ILIKE '%%' || $%[1]d || '%%')",
			argIdx,
		)

		args = append(args, filter.Query)
	}

	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []*member.Member

	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}

		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member rows: %w", err)
	}

	return members, nil
}

func (s *Store) UpdateMember(ctx context.Context, m *member.Member) error {
	query := `
		UPDATE members
		SET name = $1, phone = $2, address = $3, status = $4, monthly_dues = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		m.Name,
		m.Phone,
		m.Address,
		m.Status,
		m.MonthlyDues,
		m.ID,
	).Scan(&m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return member.ErrNotFound
		}

		return fmt.Errorf("updating member: %w", err)
	}

	return nil
}

func (s *Store) UpdateTotalDebt(ctx context.Context, id uuid.UUID, total int64) error {
	query := `
		UPDATE members
		SET total_debt = $1, updated_at = NOW()
		WHERE id = $2
	`

	res, err := s.db.ExecContext(ctx, query, total, id)
	if err != nil {
		return fmt.Errorf("updating total debt: %w", err)
	}

	return requireAffected(res)
}

func (s *Store) DeleteMember(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}

	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}

	if n == 0 {
		return member.ErrNotFound
	}

	return nil
}
