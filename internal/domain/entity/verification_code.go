package entity

import "time"

// Purpose discriminates verification codes from reset codes so they
// cannot be cross-used.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// Valid reports whether p is one of the two known purposes.
func (p Purpose) Valid() bool {
	return p == PurposeEmailVerification || p == PurposePasswordReset
}

// VerificationCode is a short-lived one-time secret mailed to an address.
// Several rows may coexist for the same (email, purpose); only the most
// recently created unexpired one is ever accepted.
type VerificationCode struct {
	ID        int64
	Email     string
	Code      string
	Purpose   Purpose
	CreatedAt time.Time
	ExpiresAt time.Time
}
