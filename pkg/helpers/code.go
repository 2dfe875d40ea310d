package helpers

import (
	"crypto/rand"
	"fmt"
)

// GenCode generates a random 6-digit verification code as a zero-padded
// string. Codes are short-lived and rate-limited, but must still not be
// predictable from the wall clock, hence crypto/rand.
func GenCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// 6 digits: map random bytes to 000000-999999
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return fmt.Sprintf("%06d", n%1000000), nil
}
