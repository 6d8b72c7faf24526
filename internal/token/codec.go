package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/wodnrP/accounts-service/pkg/errors"
)

const issuer = "accounts-service"

// Token type values carried in the token_type claim. Access and refresh
// tokens are signed with distinct secrets, and the claim rejects a token of
// the wrong class even if the two secrets are configured identically.
const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Claims represents the JWT claims issued by the codec.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies the access and refresh tokens that make up a
// session. The two token classes use separate secrets so a leaked access
// secret cannot mint refresh tokens.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the codec's time source. Used in tests to exercise
// expiry behaviour without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// New creates a codec with the given secrets and lifetimes.
func New(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...Option) *Codec {
	c := &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// NewAccessToken creates a signed access token for the given user ID.
func (c *Codec) NewAccessToken(userID string) (string, error) {
	return c.sign(userID, typeAccess, c.accessSecret, c.accessTTL)
}

// NewRefreshToken creates a signed refresh token for the given user ID.
func (c *Codec) NewRefreshToken(userID string) (string, error) {
	return c.sign(userID, typeRefresh, c.refreshSecret, c.refreshTTL)
}

func (c *Codec) sign(userID, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := c.now().UTC()
	claims := &Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// DecodeAccessToken verifies an access token and returns the user ID it was
// issued for. Expired tokens and tokens of any other class are rejected.
func (c *Codec) DecodeAccessToken(tokenString string) (string, error) {
	return c.decode(tokenString, typeAccess, c.accessSecret)
}

// DecodeRefreshToken verifies a refresh token and returns the user ID it was
// issued for. Expired tokens and tokens of any other class are rejected.
func (c *Codec) DecodeRefreshToken(tokenString string) (string, error) {
	return c.decode(tokenString, typeRefresh, c.refreshSecret)
}

func (c *Codec) decode(tokenString, tokenType string, secret []byte) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperrors.TokenExpired()
		}
		return "", apperrors.InvalidToken(fmt.Errorf("parse %s token: %w", tokenType, err))
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", apperrors.InvalidToken(fmt.Errorf("invalid %s token claims", tokenType))
	}
	if claims.TokenType != tokenType {
		return "", apperrors.InvalidToken(fmt.Errorf("token type %q is not %q", claims.TokenType, tokenType))
	}
	if claims.Subject == "" {
		return "", apperrors.InvalidToken(fmt.Errorf("%s token has empty subject", tokenType))
	}

	return claims.Subject, nil
}

// AccessTokenExpiry reads the expiry timestamp out of an access token without
// verifying its signature. Callers that need a trusted expiry must decode the
// token first.
func (c *Codec) AccessTokenExpiry(tokenString string) (time.Time, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return time.Time{}, apperrors.InvalidToken(fmt.Errorf("parse access token: %w", err))
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, apperrors.InvalidToken(fmt.Errorf("access token has no expiry claim"))
	}

	return claims.ExpiresAt.Time, nil
}
