package repository

import "github.com/breadjournal/server/internal/domain/entity"

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(u *entity.User) error
	GetByID(id string) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	// GetByUsernameOrEmail matches the same input against either column,
	// supporting login with username or email.
	GetByUsernameOrEmail(usernameOrEmail string) (*entity.User, error)
	// FindConflict returns an existing user whose username or email collides
	// with the given pair, or nil when both are free.
	FindConflict(username, email string) (*entity.User, error)
	// SetVerified flips the verified flag for the user with the given email
	// and returns the updated row.
	SetVerified(email string) (*entity.User, error)
	UpdatePasswordByEmail(email, passwordHash string) error
}
