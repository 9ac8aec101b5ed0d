// Package auth implements the Google sign-in flow and the session layer
// built on top of it.
//
// Sign-in is the OAuth 2.0 authorization code flow (see google.go). Once a
// verified identity is resolved to a local user, the session is a signed
// JWT in an HttpOnly cookie: stateless, so establishing and checking a
// session never touches the database beyond the user lookup itself.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionLifetime bounds how long a session cookie stays valid.
//
// There is no refresh mechanism: after a week the user signs in again. An
// indefinite signed cookie can never be revoked server-side, so the
// lifetime is the only cap on a leaked cookie's usefulness.
const SessionLifetime = 7 * 24 * time.Hour

const issuer = "medbox"

// TokenService signs and verifies session tokens.
//
// It holds the HMAC secret used for both operations. The secret comes from
// SESSION_SECRET and should be at least 32 random bytes in production.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the session token payload. The user's internal ID travels in
// the standard "sub" claim; nothing else is stored in the cookie.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given userID,
// valid for SessionLifetime.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, SessionLifetime)
}

// GenerateWithDuration creates a token with a custom expiry.
// Used by tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token, returning the userID from
// its "sub" claim.
//
// The jwt library checks the signature, expiry, and issuer for us. Pinning
// the algorithm to HS256 via WithValidMethods closes the algorithm
// confusion hole where a token claiming alg=none slips through.
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
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: session expired")
		}
		return "", fmt.Errorf("auth: invalid session token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid session claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: session token has no subject")
	}

	return c.Subject, nil
}
