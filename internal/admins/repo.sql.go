package admins

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castellan/castellan/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListAdmins returns one page of admins plus the total row count.
func (r *Repository) ListAdmins(ctx context.Context, limit, offset int) ([]Admin, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, name, is_active, created_at, updated_at
		FROM admins ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Admin
	for rows.Next() {
		var admin Admin
		if err := rows.Scan(&admin.ID, &admin.Email, &admin.Name, &admin.IsActive, &admin.CreatedAt, &admin.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, admin)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// GetAdmin fetches an admin by ID.
func (r *Repository) GetAdmin(ctx context.Context, id int64) (Admin, error) {
	var admin Admin
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, is_active, created_at, updated_at FROM admins WHERE id = $1`, id).
		Scan(&admin.ID, &admin.Email, &admin.Name, &admin.IsActive, &admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Admin{}, shared.ErrNotFound
		}
		return Admin{}, err
	}
	return admin, nil
}

// CreateAdmin inserts a new admin.
func (r *Repository) CreateAdmin(ctx context.Context, email, name, passwordHash string) (Admin, error) {
	var admin Admin
	err := r.pool.QueryRow(ctx, `
		INSERT INTO admins (email, name, password_hash, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING id, email, name, is_active, created_at, updated_at`,
		email, name, passwordHash).
		Scan(&admin.ID, &admin.Email, &admin.Name, &admin.IsActive, &admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		return Admin{}, err
	}
	return admin, nil
}
