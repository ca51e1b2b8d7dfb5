package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/auth"
)

// AuthService turns an identity asserted by the identity provider into a
// session token. Tokens are read back by the auth middleware.
//
//	AuthHandler (HTTP) → AuthService → TokenService (JWT)
//
// The identity is taken at face value: verifying it with the provider is
// outside this server.
type AuthService struct {
	tokens *auth.TokenService
	logger *zap.Logger
}

func NewAuthService(tokens *auth.TokenService, logger *zap.Logger) *AuthService {
	return &AuthService{tokens: tokens, logger: logger}
}

// IssueSession signs a seven-day session token for id.
func (s *AuthService) IssueSession(_ context.Context, id auth.Identity) (string, error) {
	id.Email = strings.TrimSpace(id.Email)
	id.Name = strings.TrimSpace(id.Name)
	if id.Email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}

	token, err := s.tokens.Generate(id)
	if err != nil {
		return "", err
	}
	s.logger.Debug("session issued", zap.String("email", id.Email))
	return token, nil
}
