package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

// SignUpInput is the POST /users payload.
type SignUpInput struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
}

type UserService struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserService(repo repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// SignUp is an idempotent create keyed by email. It returns the stored user
// and whether this call created it. A second sign-up with the same email
// returns the original record unchanged.
func (s *UserService) SignUp(ctx context.Context, in SignUpInput) (*model.User, bool, error) {
	name := strings.TrimSpace(in.DisplayName)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" {
		return nil, false, apperror.ValidationFailed("email", "displayName and email are required")
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}

	user := &model.User{
		DisplayName:      name,
		Email:            email,
		PhotoURL:         strings.TrimSpace(in.PhotoURL),
		AppliedCampaigns: []string{},
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent sign-up; the unique index kept one record.
		if errors.Is(err, apperror.ErrConflict) {
			existing, getErr := s.repo.GetByEmail(ctx, email)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	s.logger.Info("user created", zap.String("email", user.Email))
	return user, true, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.repo.GetByEmail(ctx, strings.TrimSpace(email))
}
