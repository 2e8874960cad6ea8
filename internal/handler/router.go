package handler

import "net/http"

func NewRouter(payments *PaymentHandler, health *HealthHandler, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	mux.HandleFunc("POST /api/v1/payments", payments.Create)
	mux.HandleFunc("GET /api/v1/payments", payments.List)
	mux.HandleFunc("GET /api/v1/payments/search", payments.Search)
	mux.HandleFunc("GET /api/v1/payments/{id}", payments.Get)
	mux.HandleFunc("PUT /api/v1/payments/{id}", payments.Update)
	mux.HandleFunc("DELETE /api/v1/payments/{id}", payments.Delete)
	mux.HandleFunc("PATCH /api/v1/payments/{id}/note", payments.UpdateNote)
	mux.HandleFunc("PATCH /api/v1/payments/{id}/status", payments.UpdateStatus)

	return mux
}
