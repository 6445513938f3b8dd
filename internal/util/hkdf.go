package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const HKDFKeyLength = 32

// keySalt domain-separates shopguard derivations from any other use of the
// same secret.
var keySalt = []byte("shopguard:hkdf:v1")

// DeriveKey expands secret into a 32-byte key bound to purpose.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("deriving %s key: empty secret", purpose)
	}
	h := hkdf.New(sha256.New, secret, keySalt, []byte(purpose))
	k := make([]byte, HKDFKeyLength)
	if _, err := io.ReadFull(h, k); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return k, nil
}
