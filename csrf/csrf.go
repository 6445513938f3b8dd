// Package csrf issues and checks anti-forgery tokens and provides a
// double-submit cookie middleware for cookie-authenticated requests.
package csrf

import (
	"crypto/subtle"
	"fmt"

	"github.com/meatandeat/shopguard/internal/util"
)

const tokenBytes = 32

// Issue returns a fresh token: 32 random bytes, hex encoded.
func Issue() (string, error) {
	tok, err := util.RandomHex(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating CSRF token: %w", err)
	}
	return tok, nil
}

// Validate reports whether token equals stored in constant time. An empty
// stored token never validates.
func Validate(token, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(stored)) == 1
}
