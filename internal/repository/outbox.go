package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/paymentrecon/payment-service/internal/domain"
)

const outboxColumns = `id, payment_id, status, attempts, last_error, created_at, sent_at`

type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func insertOutboxEntry(ctx context.Context, tx *sql.Tx, e *domain.OutboxEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (`+outboxColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.PaymentID, e.Status, e.Attempts, e.LastError, e.CreatedAt, e.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insertOutboxEntry: %w", err)
	}
	return nil
}

// MarkSent closes every pending entry of a payment.
func (r *OutboxRepository) MarkSent(ctx context.Context, paymentID uuid.UUID) error {
	_, err := r.db.Conn().ExecContext(ctx,
		`UPDATE outbox SET status = $1, sent_at = now(), attempts = attempts + 1, last_error = NULL
		WHERE payment_id = $2 AND status = $3`,
		domain.OutboxStatusSent, paymentID, domain.OutboxStatusPending,
	)
	if err != nil {
		return fmt.Errorf("MarkSent: %w", err)
	}
	return nil
}

// ProcessPending claims up to limit pending entries and calls fn for each
// inside one transaction. Entries fn succeeds on are marked sent; failures
// record the error and stay pending. It returns the number sent.
func (r *OutboxRepository) ProcessPending(ctx context.Context, limit int, fn func(context.Context, domain.OutboxEntry) error) (int, error) {
	sent := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		// SKIP LOCKED keeps concurrent relays off the same entries
		rows, err := tx.QueryContext(ctx,
			`SELECT `+outboxColumns+` FROM outbox
			WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`,
			domain.OutboxStatusPending, limit,
		)
		if err != nil {
			return fmt.Errorf("select: %w", err)
		}

		var entries []domain.OutboxEntry
		for rows.Next() {
			e, err := scanOutboxEntry(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan: %w", err)
			}
			entries = append(entries, *e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows: %w", err)
		}

		for _, e := range entries {
			if sendErr := fn(ctx, e); sendErr != nil {
				msg := sendErr.Error()
				if _, err := tx.ExecContext(ctx,
					`UPDATE outbox SET attempts = attempts + 1, last_error = $1 WHERE id = $2`,
					msg, e.ID,
				); err != nil {
					return fmt.Errorf("record failure: %w", err)
				}
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE outbox SET status = $1, sent_at = now(), attempts = attempts + 1, last_error = NULL
				WHERE id = $2`,
				domain.OutboxStatusSent, e.ID,
			); err != nil {
				return fmt.Errorf("mark sent: %w", err)
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ProcessPending: %w", err)
	}
	return sent, nil
}

func (r *OutboxRepository) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.OutboxEntry, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox WHERE payment_id = $1 ORDER BY created_at`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByPaymentID: %w", err)
	}
	defer rows.Close()

	var entries []domain.OutboxEntry
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByPaymentID: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByPaymentID: rows: %w", err)
	}
	return entries, nil
}

func scanOutboxEntry(s scanner) (*domain.OutboxEntry, error) {
	var e domain.OutboxEntry
	err := s.Scan(&e.ID, &e.PaymentID, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.SentAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
