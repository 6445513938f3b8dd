// Package account is the shopper directory: registration, password
// authentication and the role permission table.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meatandeat/shopguard/internal/util"
	"github.com/meatandeat/shopguard/internal/uuid"
	"github.com/meatandeat/shopguard/securestore"
)

var (
	ErrExists             = errors.New("account already exists")
	ErrNotFound           = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("invalid role")
)

const userKeyPrefix = "user:"

// user is the stored record. The hash and TOTP secret never leave the
// package.
type user struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            Role      `json:"role"`
	PasswordHash    string    `json:"password_hash"`
	TwoFactorSecret string    `json:"two_factor_secret,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	LastLogin       time.Time `json:"last_login,omitzero"`
}

func (u user) profile() Profile {
	return Profile{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             u.Role,
		LastLogin:        u.LastLogin,
		TwoFactorEnabled: u.TwoFactorSecret != "",
	}
}

// Profile is the public view of an account.
type Profile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Role             Role      `json:"role"`
	LastLogin        time.Time `json:"lastLogin,omitzero"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
}

// Directory stores accounts in a keyed store, one key per email.
type Directory struct {
	mu     sync.Mutex
	store  *securestore.Store
	hasher *Hasher
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Directory.
type Option func(*Directory)

func WithHasher(h *Hasher) Option {
	return func(d *Directory) {
		if h != nil {
			d.hasher = h
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDirectory(store *securestore.Store, opts ...Option) *Directory {
	d := &Directory{store: store, hasher: NewHasher(0), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func userKey(email string) string {
	return userKeyPrefix + util.NormalizeIdentifier(email)
}

// Register creates an account. The caller validates email and password
// format; Register only enforces uniqueness and a known role.
func (d *Directory) Register(ctx context.Context, email, password, name string, role Role) (Profile, error) {
	if role == "" {
		role = Customer
	}
	if !role.Valid() {
		return Profile{}, fmt.Errorf("%q: %w", role, ErrInvalidRole)
	}
	hash, err := d.hasher.Hash([]byte(password))
	if err != nil {
		return Profile{}, fmt.Errorf("hashing password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := userKey(email)
	var existing user
	if d.store.Get(ctx, key, &existing) {
		return Profile{}, ErrExists
	}
	u := user{
		ID:           "user_" + uuid.New(),
		Email:        util.NormalizeIdentifier(email),
		Name:         name,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    d.now().UTC(),
	}
	if err := d.store.Set(ctx, key, u); err != nil {
		return Profile{}, fmt.Errorf("saving account: %w", err)
	}
	return u.profile(), nil
}

// Authenticate is Verify followed by RecordLogin.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	if _, err := d.Verify(ctx, email, password); err != nil {
		return Profile{}, err
	}
	return d.RecordLogin(ctx, email)
}

// Verify checks password without recording a login. Unknown emails and wrong
// passwords both return ErrInvalidCredentials after a bcrypt comparison.
func (d *Directory) Verify(ctx context.Context, email, password string) (Profile, error) {
	var u user
	if !d.store.Get(ctx, userKey(email), &u) {
		_ = d.hasher.Compare(d.dummy(), []byte(password))
		return Profile{}, ErrInvalidCredentials
	}
	if err := d.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		return Profile{}, ErrInvalidCredentials
	}
	return u.profile(), nil
}

// RecordLogin stamps the last login time of email.
func (d *Directory) RecordLogin(ctx context.Context, email string) (Profile, error) {
	var p Profile
	err := d.update(ctx, email, func(u *user) {
		u.LastLogin = d.now().UTC()
		p = u.profile()
	})
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (d *Directory) dummy() string {
	d.dummyOnce.Do(func() {
		d.dummyHash, _ = d.hasher.Hash([]byte("shopguard-dummy-password"))
	})
	return d.dummyHash
}

// Lookup returns the profile for email.
func (d *Directory) Lookup(ctx context.Context, email string) (Profile, error) {
	var u user
	if !d.store.Get(ctx, userKey(email), &u) {
		return Profile{}, ErrNotFound
	}
	return u.profile(), nil
}

// TwoFactorSecret returns the confirmed TOTP secret for email, or "" when
// two-factor is off.
func (d *Directory) TwoFactorSecret(ctx context.Context, email string) (string, error) {
	var u user
	if !d.store.Get(ctx, userKey(email), &u) {
		return "", ErrNotFound
	}
	return u.TwoFactorSecret, nil
}

// SetTwoFactorSecret stores secret for email. An empty secret disables
// two-factor.
func (d *Directory) SetTwoFactorSecret(ctx context.Context, email, secret string) error {
	return d.update(ctx, email, func(u *user) { u.TwoFactorSecret = secret })
}

// SetRole changes the role of email.
func (d *Directory) SetRole(ctx context.Context, email string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%q: %w", role, ErrInvalidRole)
	}
	return d.update(ctx, email, func(u *user) { u.Role = role })
}

func (d *Directory) update(ctx context.Context, email string, fn func(*user)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := userKey(email)
	var u user
	if !d.store.Get(ctx, key, &u) {
		return ErrNotFound
	}
	fn(&u)
	if err := d.store.Set(ctx, key, u); err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}
