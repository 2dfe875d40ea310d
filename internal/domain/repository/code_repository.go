package repository

import "github.com/breadjournal/server/internal/domain/entity"

// CodeRepository persists one-time verification codes.
type CodeRepository interface {
	Create(c *entity.VerificationCode) error
	// Latest returns the most recently created code for (email, purpose)
	// regardless of expiry, or nil when none exists. Used by the resend
	// cooldown check.
	Latest(email string, purpose entity.Purpose) (*entity.VerificationCode, error)
	// LatestUnexpired returns the most recently created code whose expiry is
	// still in the future, or nil when none exists.
	LatestUnexpired(email string, purpose entity.Purpose) (*entity.VerificationCode, error)
	// DeleteAll removes every code for (email, purpose). Called on successful
	// consumption so no previously issued code in the family can be replayed.
	DeleteAll(email string, purpose entity.Purpose) error
}
