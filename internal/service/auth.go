package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wodnrP/accounts-service/internal/cache"
	"github.com/wodnrP/accounts-service/internal/domain"
	"github.com/wodnrP/accounts-service/internal/repository"
	"github.com/wodnrP/accounts-service/internal/token"
	apperrors "github.com/wodnrP/accounts-service/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// EventPublisher publishes account domain events. Satisfied by
// event.Producer.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserUpdated(ctx context.Context, user *domain.User, changedFields []string) error
	PublishUserDeleted(ctx context.Context, user *domain.User) error
}

// AuthService implements the business logic for account and session
// operations.
type AuthService struct {
	users    repository.UserRepository
	codec    *token.Codec
	profiles *cache.ProfileCache
	events   EventPublisher
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	codec *token.Codec,
	profiles *cache.ProfileCache,
	events EventPublisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		codec:    codec,
		profiles: profiles,
		events:   events,
		logger:   logger,
	}
}

// --- Input types ---

// SignupInput holds the parameters for registering a new account.
type SignupInput struct {
	Username     string
	Password     string
	Nickname     string
	ProfileImage string
}

// LoginInput holds the parameters for logging in.
type LoginInput struct {
	Username string
	Password string
}

// UpdateProfileInput holds the parameters for updating a profile. Nil fields
// are left untouched.
type UpdateProfileInput struct {
	Username     *string
	Password     *string
	Nickname     *string
	ProfileImage *string
}

// --- Session operations ---

// Signup registers a new account and returns the created user with a fresh
// session. After the insert the user is read back and the password verified
// against the stored hash, so a half-applied write surfaces as a signup
// failure instead of an account nobody can log into.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*domain.User, *domain.Session, error) {
	if input.Username == "" {
		return nil, nil, apperrors.Validation("username is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     input.Username,
		PasswordHash: string(hashedPassword),
		Nickname:     input.Nickname,
		ProfileImage: input.ProfileImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	// Read the row back and verify the credential actually stuck.
	stored, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, nil, apperrors.SignupFailed("account verification failed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.SignupFailed("account verification failed")
	}

	session, err := s.issueSession(stored.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue session: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.events.PublishUserRegistered(ctx, stored); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", stored.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", stored.ID),
		slog.String("username", stored.Username),
	)

	return stored, session, nil
}

// Login authenticates a user with username and password, returning a fresh
// session. Unknown usernames and wrong passwords produce the same error so
// callers cannot enumerate accounts.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.Session, error) {
	if input.Username == "" {
		return nil, nil, apperrors.Validation("username is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.Validation("password is required")
	}

	user, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, nil, apperrors.AuthenticationFailed("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.AuthenticationFailed("invalid username or password")
	}

	session, err := s.issueSession(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue session: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, session, nil
}

// Logout ends a session. Tokens are stateless, so there is nothing to revoke
// server-side; the handler clears the refresh cookie and clients discard
// their access token.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID),
	)
}

// Refresh verifies a refresh token and mints a new access token for its
// subject. The refresh token itself is never rotated; the session carries
// only the new access token. The user is looked up so tokens for deleted
// accounts stop working.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, apperrors.Validation("refresh token is required")
	}

	userID, err := s.codec.DecodeRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.AuthenticationFailed("account no longer exists")
		}
		return nil, fmt.Errorf("get user for token refresh: %w", err)
	}

	access, exp, err := s.mintAccessToken(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "session refreshed",
		slog.String("user_id", user.ID),
	)

	return &domain.Session{AccessToken: access, AccessExp: exp}, nil
}

// IdentifyFromBearer resolves an Authorization header to the user ID of the
// access token it carries. The header must be exactly "Bearer <token>".
func (s *AuthService) IdentifyFromBearer(authorizationHeader string) (string, error) {
	if authorizationHeader == "" {
		return "", apperrors.AuthenticationFailed("authorization header is missing")
	}

	parts := strings.Fields(authorizationHeader)
	if len(parts) != 2 {
		return "", apperrors.AuthenticationFailed("authorization header must be of the form 'Bearer <token>'")
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.AuthenticationFailed(fmt.Sprintf("unsupported authorization scheme %q", parts[0]))
	}

	return s.codec.DecodeAccessToken(parts[1])
}

// --- Profile operations ---

// GetProfile retrieves the full profile of the given user. The caller has
// already proven a token for this subject, so a missing row means the
// account is gone and the session is no longer good.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.AuthenticationFailed("account no longer exists")
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// GetPublicProfile retrieves the publicly visible profile of the given user,
// served from the cache when possible.
func (s *AuthService) GetPublicProfile(ctx context.Context, userID string) (*domain.PublicProfile, error) {
	if profile, ok := s.profiles.Get(ctx, userID); ok {
		return profile, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get public profile: %w", err)
	}

	profile := user.PublicProfile()
	s.profiles.Set(ctx, &profile)

	return &profile, nil
}

// UpdateProfile applies the given changes to the user's profile. Fields that
// already hold the requested value are skipped, and when nothing changes no
// write happens at all, so repeating the same request is a no-op.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.AuthenticationFailed("account no longer exists")
		}
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	var changed []string

	if input.Username != nil && *input.Username != user.Username {
		if *input.Username == "" {
			return nil, apperrors.Validation("username must not be empty")
		}
		user.Username = *input.Username
		changed = append(changed, "username")
	}

	if input.Password != nil {
		// A password equal to the current one is not a change.
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(*input.Password)) != nil {
			if err := validatePassword(*input.Password); err != nil {
				return nil, err
			}
			hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcryptCost)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			user.PasswordHash = string(hashed)
			changed = append(changed, "password")
		}
	}

	if input.Nickname != nil && *input.Nickname != user.Nickname {
		user.Nickname = *input.Nickname
		changed = append(changed, "nickname")
	}

	if input.ProfileImage != nil && *input.ProfileImage != user.ProfileImage {
		user.ProfileImage = *input.ProfileImage
		changed = append(changed, "profile_image")
	}

	if len(changed) == 0 {
		return user, nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if err := s.profiles.Invalidate(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate profile cache",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	// Publish user updated event (non-blocking on failure).
	if err := s.events.PublishUserUpdated(ctx, user, changed); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user profile updated",
		slog.String("user_id", user.ID),
		slog.String("changed", strings.Join(changed, ",")),
	)

	return user, nil
}

// DeleteAccount removes the user's account. Outstanding tokens for the
// subject stop working on their next store lookup.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.AuthenticationFailed("account no longer exists")
		}
		return fmt.Errorf("get user for deletion: %w", err)
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := s.profiles.Invalidate(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate profile cache",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	// Publish deletion event (non-blocking on failure).
	if err := s.events.PublishUserDeleted(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user account deleted",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return nil
}

// RefreshTTL exposes the refresh token lifetime for cookie expiry.
func (s *AuthService) RefreshTTL() time.Duration {
	return s.codec.RefreshTTL()
}

// issueSession creates a new access and refresh token pair for the user.
func (s *AuthService) issueSession(userID string) (*domain.Session, error) {
	access, exp, err := s.mintAccessToken(userID)
	if err != nil {
		return nil, err
	}

	refresh, err := s.codec.NewRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	return &domain.Session{
		AccessToken:  access,
		AccessExp:    exp,
		RefreshToken: refresh,
	}, nil
}

// mintAccessToken creates an access token and reads its expiry back out.
func (s *AuthService) mintAccessToken(userID string) (string, time.Time, error) {
	access, err := s.codec.NewAccessToken(userID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create access token: %w", err)
	}

	exp, err := s.codec.AccessTokenExpiry(access)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read access token expiry: %w", err)
	}

	return access, exp, nil
}

// validatePassword enforces the minimum password policy.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}
