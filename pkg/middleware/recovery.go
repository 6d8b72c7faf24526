package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/wodnrP/accounts-service/pkg/logger"
)

// panicBody mirrors the handlers' error envelope so a crashed request is
// indistinguishable from any other internal error to the client.
const panicBody = `{"error":{"code":"INTERNAL_ERROR","message":"an internal error occurred"}}`

// Recovery converts panics in downstream handlers into a 500 response with
// the standard error envelope. The panic value and stack are logged with
// the request's correlation ID; the client sees nothing else.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				ctx := r.Context()
				l.ErrorContext(ctx, "panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
					slog.String("stack", string(debug.Stack())),
				)

				// Headers may already be gone if the handler wrote before
				// panicking; in that case this is a no-op on the status.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(panicBody))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
