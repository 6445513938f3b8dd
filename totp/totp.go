// Package totp implements RFC 6238 time-based one-time passwords with
// HMAC-SHA1 and six digits, compatible with common authenticator apps.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meatandeat/shopguard/internal/util"
)

const (
	// SecretBytes is the length of a generated secret before encoding.
	SecretBytes = 20
	// Digits is the length of a code.
	Digits = 6
	// DefaultPeriod is the RFC 6238 time step.
	DefaultPeriod = 30 * time.Second
	// DefaultWindow is how many steps either side of now are accepted.
	DefaultWindow = 1
)

var (
	// ErrInvalidPeriod is returned for a period shorter than one second.
	ErrInvalidPeriod = errors.New("totp: period must be at least one second")
	// ErrInvalidSecret is returned when a secret is not valid base32.
	ErrInvalidSecret = errors.New("totp: secret is not valid base32")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns 20 random bytes as unpadded base32.
func GenerateSecret() (string, error) {
	raw, err := util.RandomBytes(SecretBytes)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(raw), nil
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	s = strings.TrimRight(s, "=")
	key, err := encoding.DecodeString(s)
	if err != nil || len(key) == 0 {
		return nil, ErrInvalidSecret
	}
	return key, nil
}

// CodeAt returns the code for the time step containing at.
func CodeAt(secret string, at time.Time, period time.Duration) (string, error) {
	if period < time.Second {
		return "", ErrInvalidPeriod
	}
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return codeForCounter(key, counterAt(at, period)), nil
}

func counterAt(at time.Time, period time.Duration) int64 {
	return at.Unix() / int64(period/time.Second)
}

func codeForCounter(key []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%0*d", Digits, bin%1000000)
}

// VerifyAt reports whether code matches the code of any time step within
// window steps of at, in either direction.
func VerifyAt(secret, code string, at time.Time, period time.Duration, window int) bool {
	code = normalizeCode(code)
	if !validCode(code) || period < time.Second || window < 0 {
		return false
	}
	key, err := decodeSecret(secret)
	if err != nil {
		return false
	}

	c := counterAt(at, period)
	matched := 0
	for i := -window; i <= window; i++ {
		if c+int64(i) < 0 {
			continue
		}
		expected := codeForCounter(key, c+int64(i))
		matched |= subtle.ConstantTimeCompare([]byte(expected), []byte(code))
	}
	return matched == 1
}

func normalizeCode(code string) string {
	return strings.TrimSpace(strings.ReplaceAll(code, " ", ""))
}

func validCode(code string) bool {
	if len(code) != Digits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// OTPAuthURL builds the otpauth:// provisioning URI shown as a QR code.
func OTPAuthURL(issuer, account, secret string) string {
	label := url.PathEscape(issuer + ":" + account)
	values := url.Values{}
	values.Set("secret", secret)
	values.Set("issuer", issuer)
	values.Set("algorithm", "SHA1")
	values.Set("digits", strconv.Itoa(Digits))
	values.Set("period", strconv.Itoa(int(DefaultPeriod/time.Second)))
	return "otpauth://totp/" + label + "?" + values.Encode()
}
