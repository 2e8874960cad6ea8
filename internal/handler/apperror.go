package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidCurrency      = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Currency must be a three-letter upper-case code"}
	ErrInvalidAmount        = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero with at most two decimal places"}
	ErrInvalidStatus        = &AppError{http.StatusBadRequest, "INVALID_STATUS", "Unknown payment status"}
	ErrInvalidPageRequest   = &AppError{http.StatusBadRequest, "INVALID_PAGE_REQUEST", "Page must be >= 0 and size >= 1"}
	ErrTransportUnavailable = &AppError{http.StatusServiceUnavailable, "TRANSPORT_UNAVAILABLE", "Message transport unavailable"}
	ErrIdempotencyConflict  = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
