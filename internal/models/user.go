package models

import (
	"time"
)

// User is the stable identity an account hangs off. Authentication methods
// live on Principal rows; a user always keeps at least one once registration
// completes.
type User struct {
	ID            string
	Email         string // canonical email
	EmailVerified bool
	Username      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
