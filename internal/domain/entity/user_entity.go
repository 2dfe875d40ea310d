package entity

import (
	"time"
)

// User is the aggregate root for the account domain.
// PasswordHash stores a bcrypt hash and must never leave the server.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
