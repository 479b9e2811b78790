package user

import (
	"fmt"
	"time"

	"volt/internal/shared/biztime"
)

// SessionToken is the single active session credential for a user.
// Signing in again replaces it, so at most one session exists per uid.
type SessionToken struct {
	UID       string
	TokenHash string
	ExpiresAt time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSessionToken(uid, tokenHash string, ttl time.Duration) (*SessionToken, error) {
	if uid == "" {
		return nil, fmt.Errorf("uid is required")
	}
	if tokenHash == "" {
		return nil, fmt.Errorf("token hash is required")
	}

	now := biztime.NowUTC()
	return &SessionToken{
		UID:       uid,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(ttl),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (t *SessionToken) IsExpired() bool {
	return biztime.NowUTC().After(t.ExpiresAt)
}

// IsValid reports whether the token is still usable as a credential.
func (t *SessionToken) IsValid() bool {
	return t.Active && !t.IsExpired()
}

// Deactivate revokes the token without deleting the row, so signouts
// remain auditable.
func (t *SessionToken) Deactivate() {
	t.Active = false
	t.UpdatedAt = biztime.NowUTC()
}
