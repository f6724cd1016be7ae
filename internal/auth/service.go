package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/castellan/castellan/internal/rbac"
	"github.com/castellan/castellan/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials for one principal type.
func (s *Service) Authenticate(ctx context.Context, principalType rbac.PrincipalType, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, principalType, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}
