package user

import "context"

// Repository defines persistence for the user aggregate. Implementations
// return a not_found AppError when no row matches.
type Repository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	GetByUID(ctx context.Context, uid string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUID(ctx context.Context, uid string) (bool, error)
	Delete(ctx context.Context, uid string) error
}

// SessionTokenRepository stores the single session credential per uid.
// Upsert replaces any existing row for the uid.
type SessionTokenRepository interface {
	Upsert(ctx context.Context, token *SessionToken) error
	GetByUID(ctx context.Context, uid string) (*SessionToken, error)
	Deactivate(ctx context.Context, uid string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// TwoFAChallengeRepository stores the single pending challenge per
// subject.
type TwoFAChallengeRepository interface {
	Upsert(ctx context.Context, challenge *TwoFAChallenge) error
	GetBySubject(ctx context.Context, subject string) (*TwoFAChallenge, error)
	Deactivate(ctx context.Context, subject string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// DataRepository is the namespaced per-user key-value store backing the
// user data endpoints.
type DataRepository interface {
	Set(ctx context.Context, uid, key string, value []byte, protected bool) error
	Get(ctx context.Context, uid, key string) ([]byte, error)
	List(ctx context.Context, uid string, protected bool) (map[string][]byte, error)
	Delete(ctx context.Context, uid, key string) error
	DeleteAll(ctx context.Context, uid string) error
}
