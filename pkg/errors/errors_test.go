package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Unwrap(t *testing.T) {
	err := AuthenticationFailed("invalid username or password")
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestInvalidToken_WrapsCause(t *testing.T) {
	cause := errors.New("signature is invalid")
	err := InvalidToken(cause)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INVALID_TOKEN", err.Code)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("username is required"), http.StatusBadRequest},
		{"authentication", AuthenticationFailed("nope"), http.StatusUnauthorized},
		{"invalid token", InvalidToken(errors.New("bad sig")), http.StatusUnauthorized},
		{"token expired", TokenExpired(), http.StatusUnauthorized},
		{"signup failed", SignupFailed("inconsistent record"), http.StatusBadRequest},
		{"not found", NotFound("user", "u-1"), http.StatusNotFound},
		{"already exists", AlreadyExists("user", "username", "alice"), http.StatusConflict},
		{"wrapped sentinel", fmt.Errorf("outer: %w", ErrTokenExpired), http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	err := NotFound("user", "u-42")
	assert.Contains(t, err.Error(), "NOT_FOUND")
	assert.Contains(t, err.Error(), "u-42")
}
