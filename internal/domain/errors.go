package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrPaymentNotFound      = fmt.Errorf("payment %w", ErrNotFound)
	ErrInvalidPayment       = errors.New("invalid payment")
	ErrUnknownStatus        = errors.New("unknown adapter status")
	ErrInvalidPageRequest   = errors.New("invalid page request")
	ErrTransportUnavailable = errors.New("message transport unavailable")
	ErrInvalidCurrency      = errors.New("invalid currency")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidStatus        = errors.New("invalid payment status")
	ErrInvalidRequest       = errors.New("invalid request")
)

// UnknownStatusError reports an adapter status with no mapping for a payment.
type UnknownStatusError struct {
	PaymentID uuid.UUID
	Status    AdapterStatus
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("payment %s: %s %q", e.PaymentID, ErrUnknownStatus, e.Status)
}

func (e *UnknownStatusError) Unwrap() error { return ErrUnknownStatus }
