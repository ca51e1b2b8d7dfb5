// Package auth issues and verifies the session token carried in the "token" cookie.
//
// SESSION FLOW:
//  1. The SPA signs the user in with the identity provider.
//  2. It POSTs the identity ({email, name}) to /jwt.
//  3. The server signs a token with those claims and sets it as an HttpOnly
//     cookie that lives for seven days.
//  4. Protected routes read the cookie, verify signature and expiry, and put
//     the Identity into the request context.
//  5. /signout overwrites the cookie with an expired one.
//
// The token is HS256 over a server-held secret. No session state is stored
// server side; the signature is the only proof.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionTTL is how long a session token and its cookie stay valid.
	SessionTTL = 7 * 24 * time.Hour

	issuer = "volunteerhub"
)

// Identity is what a valid session proves about the caller.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. The subject is the email, which is also the
// owner key on posts and applications.
type claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Generate signs a session token for id that expires after SessionTTL.
func (s *TokenService) Generate(id Identity) (string, error) {
	return s.GenerateWithDuration(id, SessionTTL)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(id Identity, d time.Duration) (string, error) {
	email := strings.TrimSpace(id.Email)
	if email == "" {
		return "", errors.New("auth: identity has no email")
	}

	now := time.Now()
	c := claims{
		Email: email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token and returns the Identity inside it.
//
// Checks: HS256 only (no "none" or algorithm confusion), signature, expiry
// present and in the future, issuer.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
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
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Email == "" {
		return Identity{}, fmt.Errorf("auth: token has no email")
	}

	return Identity{Email: c.Email, Name: c.Name}, nil
}
