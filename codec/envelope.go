package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meatandeat/shopguard/internal/util"
)

const (
	envelopeVersion = 1
	envelopeScheme  = "aes256gcm"
)

// Envelope is a sealed value containing AES-256-GCM encrypted data.
type Envelope struct {
	Ver        int
	Scheme     string
	Nonce      []byte
	Ciphertext []byte
}

// sealEnvelope encrypts plaintext into an Envelope using key and aad.
func sealEnvelope(key, plaintext, aad []byte) (*Envelope, error) {
	sealed, err := util.EncryptAESWithAAD(plaintext, key, aad)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Ver:        envelopeVersion,
		Scheme:     envelopeScheme,
		Nonce:      sealed[:util.GCMNonceSize],
		Ciphertext: sealed[util.GCMNonceSize:],
	}, nil
}

// open decrypts the envelope using key and aad.
func (e *Envelope) open(key, aad []byte) ([]byte, error) {
	if e.Ver != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version: %d", e.Ver)
	}
	if e.Scheme != envelopeScheme {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", e.Scheme)
	}

	// Reconstruct nonce || ciphertext without mutating envelope fields.
	full := make([]byte, len(e.Nonce)+len(e.Ciphertext))
	copy(full, e.Nonce)
	copy(full[len(e.Nonce):], e.Ciphertext)
	return util.DecryptAESWithAAD(full, key, aad)
}

// String renders the envelope as scheme.vN.base64url(nonce||ciphertext).
func (e *Envelope) String() string {
	payload := make([]byte, 0, len(e.Nonce)+len(e.Ciphertext))
	payload = append(payload, e.Nonce...)
	payload = append(payload, e.Ciphertext...)
	return fmt.Sprintf("%s.v%d.%s", e.Scheme, e.Ver, util.Base64URLEncode(payload))
}

// ParseEnvelope parses the text form produced by Envelope.String.
func ParseEnvelope(s string) (*Envelope, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return nil, errors.New("malformed envelope")
	}
	var ver int
	if _, err := fmt.Sscanf(parts[1], "v%d", &ver); err != nil {
		return nil, fmt.Errorf("malformed envelope version %q", parts[1])
	}
	payload, err := util.Base64URLDecode(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decoding envelope payload: %w", err)
	}
	if len(payload) < util.GCMNonceSize {
		return nil, errors.New("envelope payload shorter than nonce")
	}
	return &Envelope{
		Ver:        ver,
		Scheme:     parts[0],
		Nonce:      payload[:util.GCMNonceSize],
		Ciphertext: payload[util.GCMNonceSize:],
	}, nil
}
