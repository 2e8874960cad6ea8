package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/query"
	"github.com/paymentrecon/payment-service/internal/repository"
	"github.com/paymentrecon/payment-service/internal/service"
)

type fakePublisher struct{ err error }

func (p *fakePublisher) Publish(context.Context, *domain.Payment) error { return p.err }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func newTestRouter(t *testing.T, pub *fakePublisher) http.Handler {
	t.Helper()
	store := repository.NewMemoryStore(clockwork.NewRealClock())
	svc := service.NewPaymentService(store, store, pub, clockwork.NewRealClock())
	health := NewHealthHandler(map[string]Check{"storage": func(context.Context) error { return nil }})
	return NewRouter(NewPaymentHandler(svc), health, nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func createVia(t *testing.T, h http.Handler, body string) paymentDTO {
	t.Helper()
	rec, env := do(t, h, http.MethodPost, "/api/v1/payments", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dto paymentDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	return dto
}

func TestPaymentHandler_CreateAndGet(t *testing.T) {
	h := newTestRouter(t, &fakePublisher{})

	dto := createVia(t, h, `{"amount":"123.45","currency":"EUR","note":"first"}`)
	assert.Equal(t, "123.45", dto.Amount)
	assert.Equal(t, "EUR", dto.Currency)
	assert.Equal(t, string(domain.PaymentStatusReceived), dto.Status)
	require.NotNil(t, dto.Note)

	rec, env := do(t, h, http.MethodGet, "/api/v1/payments/"+dto.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got paymentDTO
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, dto.ID, got.ID)
}

func TestPaymentHandler_CreateValidation(t *testing.T) {
	h := newTestRouter(t, &fakePublisher{})

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{"amount":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing currency", `{"amount":"1.00"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"zero amount", `{"amount":"0","currency":"USD"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad currency", `{"amount":"1.00","currency":"usd"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"three decimals", `{"amount":"1.001","currency":"USD"}`, http.StatusBadRequest, "INVALID_AMOUNT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/api/v1/payments", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestPaymentHandler_CreateAcceptedWhenTransportDown(t *testing.T) {
	h := newTestRouter(t, &fakePublisher{err: errors.New("nats: no servers available")})

	rec, env := do(t, h, http.MethodPost, "/api/v1/payments", `{"amount":"5.00","currency":"USD"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var dto paymentDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, string(domain.PaymentStatusNotSent), dto.Status)
	assert.NotEmpty(t, rec.Header().Get("Location"))
}

func TestPaymentHandler_NotFound(t *testing.T) {
	h := newTestRouter(t, &fakePublisher{})
	missing := uuid.NewString()

	for _, tc := range []struct{ method, target, body string }{
		{http.MethodGet, "/api/v1/payments/" + missing, ""},
		{http.MethodGet, "/api/v1/payments/not-a-uuid", ""},
		{http.MethodDelete, "/api/v1/payments/" + missing, ""},
		{http.MethodPatch, "/api/v1/payments/" + missing + "/note", `{"note":"x"}`},
		{http.MethodPatch, "/api/v1/payments/" + missing + "/status", `{"status":"APPROVED"}`},
		{http.MethodPut, "/api/v1/payments/" + missing, `{"amount":"1.00","currency":"USD","status":"PENDING"}`},
	} {
		rec, _ := do(t, h, tc.method, tc.target, tc.body)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.target)
	}
}

func TestPaymentHandler_Mutations(t *testing.T) {
	h := newTestRouter(t, &fakePublisher{})
	dto := createVia(t, h, `{"amount":"10.00","currency":"USD"}`)
	base := "/api/v1/payments/" + dto.ID.String()

	rec, env := do(t, h, http.MethodPatch, base+"/note", `{"note":"checked"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var noted paymentDTO
	require.NoError(t, json.Unmarshal(env.Data, &noted))
	require.NotNil(t, noted.Note)
	assert.Equal(t, "checked", *noted.Note)

	rec, _ = do(t, h, http.MethodPatch, base+"/status", `{"status":"LOST"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, h, http.MethodPatch, base+"/status", `{"status":"DECLINED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var declined paymentDTO
	require.NoError(t, json.Unmarshal(env.Data, &declined))
	assert.Equal(t, "DECLINED", declined.Status)

	txRef := uuid.NewString()
	rec, env = do(t, h, http.MethodPut, base, `{"amount":"11.5","currency":"GBP","status":"APPROVED","transactionRefId":"`+txRef+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated paymentDTO
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "11.50", updated.Amount)
	assert.Equal(t, "GBP", updated.Currency)
	require.NotNil(t, updated.TransactionRefID)
	assert.Equal(t, txRef, updated.TransactionRefID.String())

	rec, _ = do(t, h, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, h, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentHandler_SearchAndList(t *testing.T) {
	h := newTestRouter(t, &fakePublisher{})
	for _, a := range []string{"5.00", "10.00", "15.50", "20.00", "123.45"} {
		createVia(t, h, `{"amount":"`+a+`","currency":"USD"}`)
	}
	createVia(t, h, `{"amount":"12.00","currency":"EUR"}`)

	v := url.Values{}
	v.Set("minAmount", "10")
	v.Set("maxAmount", "20")
	v.Set("currencies", "USD,GBP")
	v.Set("directionAmount", "desc")
	rec, env := do(t, h, http.MethodGet, "/api/v1/payments/search?"+v.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page pageDTO
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, query.DefaultPageSize, page.Size)
	require.Len(t, page.Items, 3)
	assert.Equal(t, []string{"20.00", "15.50", "10.00"}, []string{page.Items[0].Amount, page.Items[1].Amount, page.Items[2].Amount})

	rec, env = do(t, h, http.MethodGet, "/api/v1/payments?page=1&size=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)

	rec, env = do(t, h, http.MethodGet, "/api/v1/payments/search?size=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PAGE_REQUEST", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/payments/search?page=4611686018427387904&size=2", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PAGE_REQUEST", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/payments/search?status=LOST&createdFrom=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestHealthHandler_Readiness(t *testing.T) {
	health := NewHealthHandler(map[string]Check{
		"database": func(context.Context) error { return nil },
		"nats":     func(context.Context) error { return domain.ErrTransportUnavailable },
	})

	rec := httptest.NewRecorder()
	health.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "down", body.Status)
	assert.Equal(t, map[string]string{"database": "ok", "nats": "down"}, body.Checks)
}
