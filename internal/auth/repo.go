package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castellan/castellan/internal/rbac"
	"github.com/castellan/castellan/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, principalType rbac.PrincipalType, email string) (*Account, error)
}

// PGRepository implements Repository using PostgreSQL. Admins and users
// live in separate tables with identical credential columns.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an account by email within one principal table.
func (r *PGRepository) FindByEmail(ctx context.Context, principalType rbac.PrincipalType, email string) (*Account, error) {
	table := "users"
	if principalType == rbac.PrincipalAdmin {
		table = "admins"
	}
	row := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, is_active, created_at, updated_at FROM `+table+` WHERE email = $1`, email)

	account := &Account{PrincipalType: principalType}
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&account.ID, &account.Email, &account.PasswordHash, &account.IsActive, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	account.CreatedAt = createdAt.Time
	account.UpdatedAt = updatedAt.Time
	return account, nil
}

var _ Repository = (*PGRepository)(nil)
