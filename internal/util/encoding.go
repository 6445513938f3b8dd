package util

import (
	"encoding/base64"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC so visually identical identifiers compare equal.
func Normalize(s string) string {
	return norm.NFKC.String(s)
}

// NormalizeIdentifier normalizes, trims and lower-cases an identifier such
// as an email address.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(Normalize(s)))
}

func Base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func Base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
