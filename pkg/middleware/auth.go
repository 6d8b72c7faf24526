package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/wodnrP/accounts-service/pkg/errors"
)

type contextKeyType string

const userIDKey contextKeyType = "user_id"

// BearerIdentifier resolves a raw Authorization header value to a user ID.
// The full header is passed through untouched so the identifier owns the
// framing rules (exactly two parts, "Bearer <token>").
type BearerIdentifier func(authorizationHeader string) (string, error)

// Auth returns middleware that identifies the caller from the Authorization
// header and injects the subject user ID into the request context.
func Auth(identify BearerIdentifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := identify(r.Header.Get("Authorization"))
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

func writeAuthError(w http.ResponseWriter, err error) {
	code := "AUTHENTICATION_FAILED"
	message := "authentication failed"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
