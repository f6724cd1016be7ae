package auth

import (
	"time"

	"github.com/castellan/castellan/internal/rbac"
)

// Account represents an authenticatable principal record, either an
// admin or a user depending on PrincipalType.
type Account struct {
	ID            int64
	PrincipalType rbac.PrincipalType
	Email         string
	PasswordHash  string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
