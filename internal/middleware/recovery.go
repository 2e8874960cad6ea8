package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/paymentrecon/payment-service/internal/handler"
	"github.com/paymentrecon/payment-service/internal/logging"
)

// Recovery turns a handler panic into a 500 carrying the request id.
// http.ErrAbortHandler is re-raised so the server can abort the response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logging.FromContext(r.Context()).Error("panic recovered",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			handler.RespondAppError(w, handler.ErrInternalError, map[string]string{
				"requestId": TraceIDFromContext(r.Context()),
			})
		}()
		next.ServeHTTP(w, r)
	})
}
