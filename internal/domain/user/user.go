package user

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"volt/internal/shared/biztime"
	"volt/internal/shared/id"
)

// User is the identity aggregate. Credentials are stored as keyed HMAC
// digests only; plaintext never reaches this type.
type User struct {
	UID          string
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Activated    bool
	SupportPIN   string
	APIKeyHash   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a user with a fresh uid and support PIN. The caller
// hashes the password before construction.
func NewUser(username, email, passwordHash string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("password hash is required")
	}

	uid, err := id.NewUserID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate uid: %w", err)
	}

	pin, err := GenerateNumericCode(6)
	if err != nil {
		return nil, fmt.Errorf("failed to generate support PIN: %w", err)
	}

	now := biztime.NowUTC()
	return &User{
		UID:          uid,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  username,
		SupportPIN:   pin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Activate marks the account's email as verified.
func (u *User) Activate() {
	u.Activated = true
	u.UpdatedAt = biztime.NowUTC()
}

// ChangeEmail sets a new address and drops activation until the new
// address is verified again.
func (u *User) ChangeEmail(email string) {
	u.Email = strings.ToLower(strings.TrimSpace(email))
	u.Activated = false
	u.UpdatedAt = biztime.NowUTC()
}

// SetPasswordHash replaces the stored password digest.
func (u *User) SetPasswordHash(hash string) {
	u.PasswordHash = hash
	u.UpdatedAt = biztime.NowUTC()
}

// SetAPIKeyHash replaces the stored API key digest. A user holds at
// most one API key; reissuing revokes the previous one.
func (u *User) SetAPIKeyHash(hash string) {
	u.APIKeyHash = hash
	u.UpdatedAt = biztime.NowUTC()
}

// SetUsername replaces the login name. Uniqueness is enforced by the
// store on write.
func (u *User) SetUsername(username string) {
	u.Username = strings.TrimSpace(username)
	u.UpdatedAt = biztime.NowUTC()
}

// SetDisplayName updates the public display name.
func (u *User) SetDisplayName(name string) {
	u.DisplayName = strings.TrimSpace(name)
	u.UpdatedAt = biztime.NowUTC()
}

// GenerateNumericCode returns a cryptographically random code of n
// decimal digits, leading zeros included.
func GenerateNumericCode(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
