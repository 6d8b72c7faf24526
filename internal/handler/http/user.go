package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wodnrP/accounts-service/internal/service"
	"github.com/wodnrP/accounts-service/pkg/middleware"
	"github.com/wodnrP/accounts-service/pkg/validator"
)

// UserHandler handles HTTP requests for profile endpoints.
type UserHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// UpdateProfileRequest is the JSON request body for profile updates. Absent
// fields are left untouched.
type UpdateProfileRequest struct {
	Username     *string `json:"username" validate:"omitempty,min=1,max=100"`
	Password     *string `json:"password" validate:"omitempty,min=8"`
	Nickname     *string `json:"nickname" validate:"omitempty,max=100"`
	ProfileImage *string `json:"profile_image" validate:"omitempty,url"`
}

// GetProfile handles GET /api/v1/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "AUTHENTICATION_FAILED", Message: "authentication required"},
		})
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: user})
}

// UpdateProfile handles PATCH /api/v1/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "AUTHENTICATION_FAILED", Message: "authentication required"},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req UpdateProfileRequest
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

	input := service.UpdateProfileInput{
		Username:     req.Username,
		Password:     req.Password,
		Nickname:     req.Nickname,
		ProfileImage: req.ProfileImage,
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, input)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: user})
}

// DeleteAccount handles DELETE /api/v1/users/me. The refresh cookie is
// cleared along with the account; outstanding tokens die on their next
// store lookup.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "AUTHENTICATION_FAILED", Message: "authentication required"},
		})
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GetPublicProfile handles GET /api/v1/users/{id}
func (h *UserHandler) GetPublicProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validator.Validate(struct {
		ID string `validate:"required,uuid"`
	}{ID: id}); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "VALIDATION_ERROR", Message: "user id must be a valid UUID"},
		})
		return
	}

	profile, err := h.service.GetPublicProfile(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: profile})
}
