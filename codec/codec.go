// Package codec turns arbitrary values into opaque strings and back.
//
// Values are serialized to JSON and sealed with AES-256-GCM under a key
// derived from a shared secret. The secret is static and ships with every
// client, so a codec protects stored values against casual inspection only;
// anyone holding the client build can decrypt them.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/meatandeat/shopguard/internal/util"
)

var (
	// ErrEmptySecret is returned by New when the secret is empty.
	ErrEmptySecret = errors.New("codec: secret must not be empty")
	// ErrUndecodable is returned by Decrypt and Open for any input that does
	// not decrypt to valid JSON under this codec's key.
	ErrUndecodable = errors.New("codec: value cannot be decoded")
)

const keyPurpose = "storage-codec"

// Codec seals and opens values under one derived key.
type Codec struct {
	key *memguard.Enclave
}

// New derives the codec key from secret.
func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key, err := util.DeriveKey([]byte(secret), keyPurpose)
	if err != nil {
		return nil, err
	}
	// NewEnclave wipes key.
	return &Codec{key: memguard.NewEnclave(key)}, nil
}

// Encrypt serializes v and seals it without additional data.
func (c *Codec) Encrypt(v any) (string, error) {
	return c.Seal(v, nil)
}

// Decrypt opens ciphertext produced by Encrypt and unmarshals it into dst.
func (c *Codec) Decrypt(ciphertext string, dst any) error {
	return c.Open(ciphertext, nil, dst)
}

// Seal serializes v and seals it, authenticating aad alongside. The same aad
// must be supplied to Open.
func (c *Codec) Seal(v any, aad []byte) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serializing value: %w", err)
	}
	defer util.WipeBytes(plain)

	buf, err := c.key.Open()
	if err != nil {
		return "", fmt.Errorf("opening codec key: %w", err)
	}
	defer buf.Destroy()

	env, err := sealEnvelope(buf.Bytes(), plain, aad)
	if err != nil {
		return "", fmt.Errorf("sealing value: %w", err)
	}
	return env.String(), nil
}

// Open reverses Seal. Every failure, whether a malformed string, a wrong key,
// mismatched aad or a non-JSON plaintext, is reported as ErrUndecodable.
func (c *Codec) Open(ciphertext string, aad []byte, dst any) error {
	env, err := ParseEnvelope(ciphertext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	buf, err := c.key.Open()
	if err != nil {
		return fmt.Errorf("opening codec key: %w", err)
	}
	defer buf.Destroy()

	plain, err := env.open(buf.Bytes(), aad)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	defer util.WipeBytes(plain)

	if err := json.Unmarshal(plain, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return nil
}
