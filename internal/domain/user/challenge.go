package user

import (
	"fmt"
	"time"

	"volt/internal/shared/biztime"
)

// TwoFAChallenge is a pending email verification code. Subject is the
// uid for sign-in checks, or the pending email address for flows where
// no account exists yet. One active challenge per subject; issuing a
// new one replaces the old.
type TwoFAChallenge struct {
	Subject   string
	CodeHash  string
	ExpiresAt time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTwoFAChallenge(subject, codeHash string, ttl time.Duration) (*TwoFAChallenge, error) {
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if codeHash == "" {
		return nil, fmt.Errorf("code hash is required")
	}

	now := biztime.NowUTC()
	return &TwoFAChallenge{
		Subject:   subject,
		CodeHash:  codeHash,
		ExpiresAt: now.Add(ttl),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c *TwoFAChallenge) IsExpired() bool {
	return biztime.NowUTC().After(c.ExpiresAt)
}

// Deactivate consumes the challenge. A challenge is single-use whether
// it succeeded, failed, or expired.
func (c *TwoFAChallenge) Deactivate() {
	c.Active = false
	c.UpdatedAt = biztime.NowUTC()
}
