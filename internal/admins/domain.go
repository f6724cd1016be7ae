package admins

import "time"

// Admin represents a back-office administrator account.
type Admin struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
