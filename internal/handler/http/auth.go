package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wodnrP/accounts-service/internal/service"
	"github.com/wodnrP/accounts-service/pkg/validator"
)

// refreshCookieName is the cookie carrying the refresh token for browser
// clients.
const refreshCookieName = "refreshToken"

// AuthHandler handles HTTP requests for session endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for account registration.
type SignupRequest struct {
	Username     string `json:"username" validate:"required,min=1,max=100"`
	Password     string `json:"password" validate:"required,min=8"`
	Nickname     string `json:"nickname" validate:"omitempty,max=100"`
	ProfileImage string `json:"profile_image" validate:"omitempty,url"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the JSON request body for token refresh. The token may
// instead arrive in the refresh cookie, so the body is optional.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// --- Response types ---

// AuthResponse wraps user data with the issued session.
type AuthResponse struct {
	User    any `json:"user"`
	Session any `json:"session"`
}

// --- Handlers ---

// Signup handles POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "VALIDATION_ERROR", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := service.SignupInput{
		Username:     req.Username,
		Password:     req.Password,
		Nickname:     req.Nickname,
		ProfileImage: req.ProfileImage,
	}

	user, session, err := h.service.Signup(r.Context(), input)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	writeJSON(w, http.StatusCreated, response{
		Data: AuthResponse{
			User:    user,
			Session: session,
		},
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "VALIDATION_ERROR", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	}

	user, session, err := h.service.Login(r.Context(), input)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	writeJSON(w, http.StatusOK, response{
		Data: AuthResponse{
			User:    user,
			Session: session,
		},
	})
}

// Logout handles DELETE /api/v1/auth/logout. Tokens are stateless, so
// logout always succeeds: it clears the refresh cookie whether or not the
// caller still holds a valid access token. A decodable bearer token is
// used only to attribute the logout in the logs.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if userID, err := h.service.IdentifyFromBearer(r.Header.Get("Authorization")); err == nil {
		h.service.Logout(r.Context(), userID)
	}

	clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token is read from
// the JSON body, falling back to the refresh cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req RefreshRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, response{
				Error: &errorResponse{Code: "VALIDATION_ERROR", Message: "invalid request body: " + err.Error()},
			})
			return
		}
	}

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			refreshToken = cookie.Value
		}
	}

	session, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	// The refresh token is not rotated, so the cookie stays as issued.
	writeJSON(w, http.StatusOK, response{Data: session})
}

// --- Cookie helpers ---

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(h.service.RefreshTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
