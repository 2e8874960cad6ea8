package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paymentrecon/payment-service/internal/domain"
)

// NewPayment returns a RECEIVED payment that has not been stored.
func NewPayment(amount, currency string) *domain.Payment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Payment{
		ID:           uuid.New(),
		InquiryRefID: uuid.New(),
		Amount:       decimal.RequireFromString(amount),
		Currency:     domain.Currency(currency),
		Status:       domain.PaymentStatusReceived,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func SeedPayment(t *testing.T, db *sql.DB, p *domain.Payment) *domain.Payment {
	t.Helper()

	var txRef uuid.NullUUID
	if p.TransactionRefID != nil {
		txRef = uuid.NullUUID{UUID: *p.TransactionRefID, Valid: true}
	}

	_, err := db.Exec(
		`INSERT INTO payments (id, inquiry_ref_id, amount, currency, transaction_ref_id, status, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.InquiryRefID, p.Amount, p.Currency, txRef, p.Status, p.Note, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed payment %s: %v", p.ID, err)
	}
	return p
}
