package users

import "time"

// User is a regular end-user account. Role membership lives in the
// rbac package; this record only carries identity and status.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
