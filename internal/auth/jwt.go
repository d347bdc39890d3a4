// Package auth provides JWT session tokens and the middleware that reads them.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User submits their email → server mails a one-time magic link
//  2. User clicks the link → server verifies the token, upserts the user
//  3. Server issues a JWT session token, stores it in an HttpOnly cookie
//  4. On subsequent API calls, middleware reads the cookie, validates the
//     JWT, and sets the userID in the request context
//
// JWT is stateless: the userID and expiry live inside the signed token, so
// validation needs no DB lookup — just the HMAC secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionDuration is how long an issued session token stays valid. After
// expiry the user requests a fresh magic link.
const SessionDuration = 7 * 24 * time.Hour

// TokenService handles JWT creation and validation. It holds the HMAC
// secret used to sign and verify tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds jwt.RegisteredClaims; the internal user ID rides in "sub".
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given userID,
// valid for SessionDuration.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, SessionDuration)
}

// GenerateWithDuration creates a token with a custom expiry. Used in tests
// and anywhere a non-default lifetime is needed.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    "photalabs",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the userID from
// the "sub" claim. The library checks signature, expiry, and issuer;
// WithValidMethods pins HS256 to block algorithm confusion attacks.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer("photalabs"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	userID := c.Subject
	if userID == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return userID, nil
}
