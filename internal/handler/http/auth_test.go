package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wodnrP/accounts-service/internal/cache"
	"github.com/wodnrP/accounts-service/internal/domain"
	"github.com/wodnrP/accounts-service/internal/service"
	"github.com/wodnrP/accounts-service/internal/token"
	apperrors "github.com/wodnrP/accounts-service/pkg/errors"
	"github.com/wodnrP/accounts-service/pkg/health"
)

// ============================================================================
// Mocks and fixtures
// ============================================================================

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func() *domain.User); ok {
		return fn(), args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockPublisher) PublishUserUpdated(ctx context.Context, user *domain.User, changedFields []string) error {
	args := m.Called(ctx, user, changedFields)
	return args.Error(0)
}

func (m *mockPublisher) PublishUserDeleted(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCodec() *token.Codec {
	return token.New(
		"test-access-secret-which-is-long-enough",
		"test-refresh-secret-which-is-long-enough",
		15*time.Minute,
		7*24*time.Hour,
	)
}

// testServer wires a full router around mocked persistence.
type testServer struct {
	handler http.Handler
	users   *mockUserRepo
	events  *mockPublisher
	codec   *token.Codec
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	users := new(mockUserRepo)
	events := new(mockPublisher)
	logger := testLogger()
	codec := testCodec()
	profiles := cache.NewProfileCache(nil, time.Minute, logger)
	svc := service.NewAuthService(users, codec, profiles, events, logger)

	handler := NewRouter(svc, health.NewHandler(), logger, RouterConfig{
		CORS: CORSConfig{Environment: "development"},
	})

	return &testServer{handler: handler, users: users, events: events, codec: codec}
}

func (s *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range mutate {
		fn(req)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return parsed
}

func hashedPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func existingUser(t *testing.T, password string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:           "4f2c8f7e-9c31-4f09-9a11-0f6f3a1b2c3d",
		Username:     "alice",
		PasswordHash: hashedPassword(t, password),
		Nickname:     "Alice",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	return nil
}

// ============================================================================
// Signup
// ============================================================================

func TestSignupEndpoint_Success(t *testing.T) {
	s := newTestServer(t)

	var created *domain.User
	s.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.User)
		}).
		Return(nil)
	s.users.On("GetByUsername", mock.Anything, "alice").
		Return(func() *domain.User { return created }, nil)
	s.events.On("PublishUserRegistered", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"username": "alice",
		"password": "password123",
		"nickname": "Alice",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	parsed := decodeResponse(t, rec)
	data := parsed["data"].(map[string]any)
	user := data["user"].(map[string]any)
	session := data["session"].(map[string]any)

	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "password_hash")
	assert.NotEmpty(t, session["access_token"])
	assert.NotEmpty(t, session["refresh_token"])

	// access_exp must be RFC 3339 and in the future.
	exp, err := time.Parse(time.RFC3339, session["access_exp"].(string))
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, session["refresh_token"], cookie.Value)
}

func TestSignupEndpoint_ValidationError(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"username": "alice",
		"password": "short",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	parsed := decodeResponse(t, rec)
	errObj := parsed["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
}

func TestSignupEndpoint_DuplicateUsername(t *testing.T) {
	s := newTestServer(t)

	s.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "username", "alice"))

	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"username": "alice",
		"password": "password123",
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	parsed := decodeResponse(t, rec)
	errObj := parsed["error"].(map[string]any)
	assert.Equal(t, "ALREADY_EXISTS", errObj["code"])
}

func TestSignupEndpoint_WrongContentType(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString("username=alice"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ============================================================================
// Login
// ============================================================================

func TestLoginEndpoint_Success(t *testing.T) {
	s := newTestServer(t)

	u := existingUser(t, "password123")
	s.users.On("GetByUsername", mock.Anything, "alice").Return(u, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "password123",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	parsed := decodeResponse(t, rec)
	data := parsed["data"].(map[string]any)
	session := data["session"].(map[string]any)
	assert.NotEmpty(t, session["access_token"])

	require.NotNil(t, refreshCookie(rec))
}

func TestLoginEndpoint_WrongPassword(t *testing.T) {
	s := newTestServer(t)

	u := existingUser(t, "password123")
	s.users.On("GetByUsername", mock.Anything, "alice").Return(u, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	parsed := decodeResponse(t, rec)
	errObj := parsed["error"].(map[string]any)
	assert.Equal(t, "AUTHENTICATION_FAILED", errObj["code"])
}

func TestLoginEndpoint_UnknownUserSameError(t *testing.T) {
	s := newTestServer(t)

	u := existingUser(t, "password123")
	s.users.On("GetByUsername", mock.Anything, "alice").Return(u, nil)
	s.users.On("GetByUsername", mock.Anything, "ghost").Return(nil, apperrors.ErrNotFound)

	recUnknown := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "ghost", "password": "password123",
	})
	recWrongPw := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "alice", "password": "wrong-password",
	})

	require.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	require.Equal(t, http.StatusUnauthorized, recWrongPw.Code)
	assert.Equal(t, recUnknown.Body.String(), recWrongPw.Body.String())
}

// ============================================================================
// Refresh
// ============================================================================

func TestRefreshEndpoint_FromBody(t *testing.T) {
	s := newTestServer(t)

	u := existingUser(t, "password123")
	s.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)

	refresh, err := s.codec.NewRefreshToken(u.ID)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": refresh,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	parsed := decodeResponse(t, rec)
	data := parsed["data"].(map[string]any)
	assert.NotEmpty(t, data["access_token"])

	// The refresh token is not rotated: no new token in the body, no new cookie.
	assert.NotContains(t, data, "refresh_token")
	assert.Nil(t, refreshCookie(rec))
}

func TestRefreshEndpoint_FromCookie(t *testing.T) {
	s := newTestServer(t)

	u := existingUser(t, "password123")
	s.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)

	refresh, err := s.codec.NewRefreshToken(u.ID)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: refreshCookieName, Value: refresh})
	})

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshEndpoint_RejectsAccessToken(t *testing.T) {
	s := newTestServer(t)

	access, err := s.codec.NewAccessToken("u-1")
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": access,
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	parsed := decodeResponse(t, rec)
	errObj := parsed["error"].(map[string]any)
	assert.Equal(t, "INVALID_TOKEN", errObj["code"])
}

func TestRefreshEndpoint_MissingToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/refresh", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Logout
// ============================================================================

func TestLogoutEndpoint_ClearsCookie(t *testing.T) {
	s := newTestServer(t)

	access, err := s.codec.NewAccessToken("u-1")
	require.NoError(t, err)

	rec := s.do(t, http.MethodDelete, "/api/v1/auth/logout", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
	})

	require.Equal(t, http.StatusNoContent, rec.Code)

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestLogoutEndpoint_WithoutAuth(t *testing.T) {
	s := newTestServer(t)

	// Logout never requires a valid session: a client that lost or never
	// had its access token still gets the cookie cleared.
	rec := s.do(t, http.MethodDelete, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestLogoutEndpoint_ExpiredAccessToken(t *testing.T) {
	s := newTestServer(t)

	// Sign a token that expired an hour ago with the same secrets.
	past := time.Now().Add(-2 * time.Hour)
	expiredCodec := token.New(
		"test-access-secret-which-is-long-enough",
		"test-refresh-secret-which-is-long-enough",
		15*time.Minute,
		7*24*time.Hour,
		token.WithClock(func() time.Time { return past }),
	)
	access, err := expiredCodec.NewAccessToken("u-1")
	require.NoError(t, err)

	// A client in the access-expired state can still log out.
	rec := s.do(t, http.MethodDelete, "/api/v1/auth/logout", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}
