package roles

import "time"

// Role represents a role for management.
type Role struct {
	ID            int64
	Name          string
	PrincipalType string
	IsSystem      bool
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
