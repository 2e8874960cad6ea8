package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusReceived PaymentStatus = "RECEIVED"
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusDeclined PaymentStatus = "DECLINED"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusNotSent  PaymentStatus = "NOT_SENT"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusReceived, PaymentStatusPending, PaymentStatusDeclined,
		PaymentStatusApproved, PaymentStatusNotSent:
		return true
	}
	return false
}

// Currency is an ISO 4217 alphabetic code.
type Currency string

func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// AmountScale is the number of fractional digits stored for an amount.
const AmountScale = 2

type Payment struct {
	ID               uuid.UUID
	InquiryRefID     uuid.UUID
	Amount           decimal.Decimal
	Currency         Currency
	TransactionRefID *uuid.UUID
	Status           PaymentStatus
	Note             *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Touch moves UpdatedAt forward to at. It never moves it backwards.
func (p *Payment) Touch(at time.Time) {
	if at.After(p.UpdatedAt) {
		p.UpdatedAt = at
	}
}
