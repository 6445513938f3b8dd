package account

import "golang.org/x/crypto/bcrypt"

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to the
// range bcrypt accepts. Non-positive selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns nil when password matches hash.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
