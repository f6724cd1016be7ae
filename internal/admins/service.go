package admins

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines data access methods for admins.
type RepositoryPort interface {
	ListAdmins(ctx context.Context, limit, offset int) ([]Admin, int, error)
	GetAdmin(ctx context.Context, id int64) (Admin, error)
	CreateAdmin(ctx context.Context, email, name, passwordHash string) (Admin, error)
}

// Service handles admin business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListAdmins returns one page of admins plus the total row count.
func (s *Service) ListAdmins(ctx context.Context, limit, offset int) ([]Admin, int, error) {
	return s.repo.ListAdmins(ctx, limit, offset)
}

// GetAdmin fetches an admin by ID.
func (s *Service) GetAdmin(ctx context.Context, id int64) (Admin, error) {
	return s.repo.GetAdmin(ctx, id)
}

// CreateAdmin hashes the password and persists a new admin.
func (s *Service) CreateAdmin(ctx context.Context, email, name, password string) (Admin, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Admin{}, err
	}
	return s.repo.CreateAdmin(ctx, email, name, string(hashed))
}
