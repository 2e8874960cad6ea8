package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestMessage asks the settlement adapter to process a payment.
type RequestMessage struct {
	PaymentGUID uuid.UUID       `json:"paymentGuid"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// ResponseMessage reports the adapter's view of a payment.
type ResponseMessage struct {
	MessageID        uuid.UUID       `json:"messageId"`
	PaymentGUID      uuid.UUID       `json:"paymentGuid"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         Currency        `json:"currency"`
	TransactionRefID uuid.UUID       `json:"transactionRefId"`
	Status           AdapterStatus   `json:"status"`
	OccurredAt       time.Time       `json:"occurredAt"`
}

func NewRequestMessage(p *Payment) RequestMessage {
	return RequestMessage{
		PaymentGUID: p.ID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		OccurredAt:  p.UpdatedAt,
	}
}
