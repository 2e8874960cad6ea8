package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/logging"
	"github.com/paymentrecon/payment-service/internal/query"
	"github.com/paymentrecon/payment-service/internal/service"
)

type paymentService interface {
	Create(ctx context.Context, in service.CreatePaymentInput) (*domain.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Update(ctx context.Context, id uuid.UUID, in service.UpdatePaymentInput) (*domain.Payment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateNote(ctx context.Context, id uuid.UUID, note string) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Payment, error)
	Search(ctx context.Context, f query.FilterSpec) (query.Page[domain.Payment], error)
	List(ctx context.Context, pageNumber, pageSize int) (query.Page[domain.Payment], error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	InquiryRefID *uuid.UUID      `json:"inquiryRefId"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Note         *string         `json:"note"`
}

func (r createPaymentRequest) Validate() []FieldError {
	var errs []FieldError

	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be a three-letter upper-case code"})
	}

	return errs
}

type updatePaymentRequest struct {
	InquiryRefID     *uuid.UUID      `json:"inquiryRefId"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	TransactionRefID *uuid.UUID      `json:"transactionRefId"`
	Status           string          `json:"status"`
	Note             *string         `json:"note"`
}

func (r updatePaymentRequest) Validate() []FieldError {
	errs := createPaymentRequest{Amount: r.Amount, Currency: r.Currency}.Validate()

	if r.Status == "" {
		errs = append(errs, FieldError{Field: "status", Message: "required"})
	} else if !domain.PaymentStatus(r.Status).IsValid() {
		errs = append(errs, FieldError{Field: "status", Message: "unknown status"})
	}

	return errs
}

type noteRequest struct {
	Note string `json:"note"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type paymentDTO struct {
	ID               uuid.UUID  `json:"id"`
	InquiryRefID     uuid.UUID  `json:"inquiryRefId"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	TransactionRefID *uuid.UUID `json:"transactionRefId"`
	Status           string     `json:"status"`
	Note             *string    `json:"note"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	return paymentDTO{
		ID:               p.ID,
		InquiryRefID:     p.InquiryRefID,
		Amount:           p.Amount.StringFixed(domain.AmountScale),
		Currency:         string(p.Currency),
		TransactionRefID: p.TransactionRefID,
		Status:           string(p.Status),
		Note:             p.Note,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

type pageDTO struct {
	Items      []paymentDTO `json:"items"`
	Page       int          `json:"page"`
	Size       int          `json:"size"`
	TotalItems int          `json:"totalItems"`
	TotalPages int          `json:"totalPages"`
}

func toPageDTO(p query.Page[domain.Payment]) pageDTO {
	items := query.Map(p, func(pay domain.Payment) paymentDTO { return toPaymentDTO(&pay) })
	return pageDTO{
		Items:      items.Items,
		Page:       items.Number,
		Size:       items.Size,
		TotalItems: items.TotalItems,
		TotalPages: items.TotalPages,
	}
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createPaymentRequest
	if err := decode(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	in := service.CreatePaymentInput{
		Amount:   req.Amount,
		Currency: domain.Currency(req.Currency),
		Note:     req.Note,
	}
	if req.InquiryRefID != nil {
		in.InquiryRefID = *req.InquiryRefID
	}

	p, err := h.payments.Create(r.Context(), in)
	if err != nil && p != nil && errors.Is(err, domain.ErrTransportUnavailable) {
		// Stored but not yet sent; the outbox relay owns delivery from here.
		log.Warn("payment accepted without request sent", "payment_id", p.ID, "error", err)
		w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%s", p.ID))
		RespondSuccess(w, http.StatusAccepted, toPaymentDTO(p))
		return
	}
	if err != nil {
		log.Warn("payment creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, toPaymentDTO(p))
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.GetByID(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	var fields []FieldError
	fail := func(field, msg string) { fields = append(fields, FieldError{Field: field, Message: msg}) }

	page, size := 0, query.DefaultPageSize
	if n := parseInt(v, "page", fail); n != nil {
		page = *n
	}
	if n := parseInt(v, "size", fail); n != nil {
		size = *n
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	result, err := h.payments.List(r.Context(), page, size)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPageDTO(result))
}

func (h *PaymentHandler) Search(w http.ResponseWriter, r *http.Request) {
	spec, fields := parseFilterSpec(r.URL.Query())
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	result, err := h.payments.Search(r.Context(), spec)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment search failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPageDTO(result))
}

func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req updatePaymentRequest
	if err := decode(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	in := service.UpdatePaymentInput{
		Amount:           req.Amount,
		Currency:         domain.Currency(req.Currency),
		TransactionRefID: req.TransactionRefID,
		Status:           domain.PaymentStatus(req.Status),
		Note:             req.Note,
	}
	if req.InquiryRefID != nil {
		in.InquiryRefID = *req.InquiryRefID
	}

	p, err := h.payments.Update(r.Context(), id, in)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment update failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	if err := h.payments.Delete(r.Context(), id); err != nil {
		RespondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PaymentHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req noteRequest
	if err := decode(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	p, err := h.payments.UpdateNote(r.Context(), id, req.Note)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req statusRequest
	if err := decode(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if !domain.PaymentStatus(req.Status).IsValid() {
		RespondValidationError(w, []FieldError{{Field: "status", Message: "unknown status"}})
		return
	}

	p, err := h.payments.UpdateStatus(r.Context(), id, domain.PaymentStatus(req.Status))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}
