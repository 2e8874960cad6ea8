package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/query"
)

const paymentColumns = `id, inquiry_ref_id, amount, currency, transaction_ref_id,
	status, note, created_at, updated_at`

type PaymentRepository struct {
	db *DB
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateWithOutbox inserts the payment and its outbox entry atomically.
func (r *PaymentRepository) CreateWithOutbox(ctx context.Context, payment *domain.Payment, entry *domain.OutboxEntry) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertPayment(ctx, tx, payment); err != nil {
			return err
		}
		return insertOutboxEntry(ctx, tx, entry)
	})
	if err != nil {
		return fmt.Errorf("CreateWithOutbox: %w", err)
	}
	return nil
}

func insertPayment(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.InquiryRefID, p.Amount, p.Currency, p.TransactionRefID,
		p.Status, p.Note, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insertPayment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return exists, nil
}

// Update saves every mutable attribute of an existing payment.
func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`UPDATE payments SET inquiry_ref_id = $1, amount = $2, currency = $3,
			transaction_ref_id = $4, status = $5, note = $6,
			updated_at = GREATEST(updated_at, $7)
		WHERE id = $8
		RETURNING `+paymentColumns,
		p.InquiryRefID, p.Amount, p.Currency, p.TransactionRefID, p.Status, p.Note,
		p.UpdatedAt, p.ID,
	)
	updated, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Update: %w", domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("Update: %w", err)
	}
	return updated, nil
}

func (r *PaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.Conn().ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return requireRow(res, "Delete")
}

func (r *PaymentRepository) UpdateNote(ctx context.Context, id uuid.UUID, note string, at time.Time) error {
	res, err := r.db.Conn().ExecContext(ctx,
		`UPDATE payments SET note = $1, updated_at = GREATEST(updated_at, $2) WHERE id = $3`,
		note, at, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateNote: %w", err)
	}
	return requireRow(res, "UpdateNote")
}

// UpdateStatus unconditionally sets the status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, at time.Time) (*domain.Payment, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`UPDATE payments SET status = $1, updated_at = GREATEST(updated_at, $2)
		WHERE id = $3
		RETURNING `+paymentColumns,
		status, at, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	return p, nil
}

// ApplyStatus sets the status only if it differs from the stored one, in a
// single statement. changed is false when the payment already had it.
func (r *PaymentRepository) ApplyStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, at time.Time) (*domain.Payment, bool, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`UPDATE payments SET status = $1, updated_at = GREATEST(updated_at, $2)
		WHERE id = $3 AND status <> $1
		RETURNING `+paymentColumns,
		status, at, id,
	)
	p, err := scanPayment(row)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("ApplyStatus: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("ApplyStatus: %w", err)
	}
	return current, false, nil
}

func (r *PaymentRepository) FindAll(ctx context.Context, q query.Query) (query.Page[domain.Payment], error) {
	var b sqlBuilder
	where, err := b.where(q.Where)
	if err != nil {
		return query.Page[domain.Payment]{}, fmt.Errorf("FindAll: %w", err)
	}
	order, err := orderBy(q.Sort)
	if err != nil {
		return query.Page[domain.Payment]{}, fmt.Errorf("FindAll: %w", err)
	}

	var total int
	if err := r.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE `+where, b.args...,
	).Scan(&total); err != nil {
		return query.Page[domain.Payment]{}, fmt.Errorf("FindAll: count: %w", err)
	}

	stmt := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where + order
	args := b.args
	if !q.Page.Unpaged {
		n := len(args)
		stmt += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
		args = append(args, q.Page.Size, q.Page.Offset())
	}

	rows, err := r.db.Conn().QueryContext(ctx, stmt, args...)
	if err != nil {
		return query.Page[domain.Payment]{}, fmt.Errorf("FindAll: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return query.Page[domain.Payment]{}, fmt.Errorf("FindAll: scan: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return query.Page[domain.Payment]{}, fmt.Errorf("FindAll: rows: %w", err)
	}

	return query.NewPage(payments, q.Page, total), nil
}

func requireRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrPaymentNotFound)
	}
	return nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var txRef uuid.NullUUID

	err := s.Scan(
		&p.ID, &p.InquiryRefID, &p.Amount, &p.Currency, &txRef,
		&p.Status, &p.Note, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if txRef.Valid {
		p.TransactionRefID = &txRef.UUID
	}
	return &p, nil
}
