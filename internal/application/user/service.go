package user

import (
	"context"
	"strings"
	"time"

	domain "volt/internal/domain/user"
	"volt/internal/infrastructure/auth"
	"volt/internal/infrastructure/token"
	"volt/internal/shared/config"
	"volt/internal/shared/errors"
	"volt/internal/shared/id"
	"volt/internal/shared/logger"
)

const uidRetries = 5

// Mailer delivers verification codes. Satisfied by email.Service.
type Mailer interface {
	SendTwoFACode(to, code string) error
}

// Service implements the identity operations: sign-up, sign-in,
// credential verification, 2FA, API keys, profile mutations, and the
// per-user data store.
type Service struct {
	users      domain.Repository
	tokens     domain.SessionTokenRepository
	challenges domain.TwoFAChallengeRepository
	data       domain.DataRepository
	hasher     *auth.Hasher
	generator  *token.Generator
	mailer     Mailer
	cfg        config.AuthConfig
	log        logger.Interface
	latency    *latencyTracker

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewService(
	users domain.Repository,
	tokens domain.SessionTokenRepository,
	challenges domain.TwoFAChallengeRepository,
	data domain.DataRepository,
	hasher *auth.Hasher,
	generator *token.Generator,
	mailer Mailer,
	cfg config.AuthConfig,
	log logger.Interface,
) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		challenges: challenges,
		data:       data,
		hasher:     hasher,
		generator:  generator,
		mailer:     mailer,
		cfg:        cfg,
		log:        log.Named("user"),
		latency:    newLatencyTracker(),
		sleep:      time.Sleep,
	}
}

// CreateUser registers a new account. The pre-checks give friendly
// errors on the common path; the unique indexes remain authoritative
// and a racing duplicate surfaces as a conflict from Create.
func (s *Service) CreateUser(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if taken, err := s.users.ExistsByUsername(ctx, username); err != nil {
		return nil, err
	} else if taken {
		return nil, domain.ErrUsernameTaken
	}
	if taken, err := s.users.ExistsByEmail(ctx, email); err != nil {
		return nil, err
	} else if taken {
		return nil, domain.ErrEmailTaken
	}

	u, err := domain.NewUser(username, email, s.hasher.Hash(password))
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	u.Activated = !s.cfg.RequireActivation

	if err := s.ensureFreshUID(ctx, u); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.Infow("user created", "uid", u.UID, "username", u.Username)
	return u, nil
}

// ensureFreshUID regenerates the uid until it does not collide with an
// existing account. Collisions are practically impossible but a reused
// uid would leak another user's records, so we check anyway.
func (s *Service) ensureFreshUID(ctx context.Context, u *domain.User) error {
	for i := 0; i < uidRetries; i++ {
		exists, err := s.users.ExistsByUID(ctx, u.UID)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		uid, err := id.NewUserID()
		if err != nil {
			return errors.NewInternalError("failed to generate uid").WithCause(err)
		}
		u.UID = uid
	}
	return errors.NewInternalError("could not allocate a unique uid")
}

// SignIn checks a password (and 2FA code when provided) against the
// account matching the identifier, which is an email when it contains
// an @ and a username otherwise. On success it issues a fresh session
// token, replacing any previous session for the uid.
//
// Failures are delayed by the running median of recent 2FA-send
// latencies so "no such user" and "wrong password" are not separable
// from a code-sending sign-in by timing.
func (s *Service) SignIn(ctx context.Context, identifier, password, code string) (*domain.User, string, error) {
	u, err := s.lookupByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			s.delayFailure()
			return nil, "", domain.ErrInvalidCredential
		}
		return nil, "", err
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		s.delayFailure()
		return nil, "", domain.ErrInvalidCredential
	}

	if s.cfg.RequireActivation && !u.Activated {
		return nil, "", domain.ErrNotActivated
	}

	if code != "" {
		if err := s.Verify2FA(ctx, u.UID, code); err != nil {
			return nil, "", err
		}
	}

	plain, digest, err := s.generator.GenerateSessionToken(u.UID)
	if err != nil {
		return nil, "", errors.NewInternalError("failed to issue session token").WithCause(err)
	}
	st, err := domain.NewSessionToken(u.UID, digest, s.cfg.TokenExpiry())
	if err != nil {
		return nil, "", errors.NewInternalError("failed to issue session token").WithCause(err)
	}
	if err := s.tokens.Upsert(ctx, st); err != nil {
		return nil, "", err
	}

	s.log.Infow("signed in", "uid", u.UID)
	return u, plain, nil
}

// SignOut invalidates the uid's session token. Idempotent.
func (s *Service) SignOut(ctx context.Context, uid string) error {
	if err := s.tokens.Deactivate(ctx, uid); err != nil && !errors.IsNotFound(err) {
		return err
	}
	return nil
}

// Authenticate resolves a presented credential, either an API key or a
// session token, to the owning user. Every failure path collapses to
// ErrInvalidCredential: this boundary fails closed and never leaks why.
func (s *Service) Authenticate(ctx context.Context, credential string) (*domain.User, error) {
	if credential == "" {
		return nil, domain.ErrInvalidCredential
	}

	if token.IsAPIKey(credential) {
		uid, err := token.ParseAPIKey(credential)
		if err != nil {
			return nil, domain.ErrInvalidCredential
		}
		u, err := s.users.GetByUID(ctx, uid)
		if err != nil {
			return nil, domain.ErrInvalidCredential
		}
		if u.APIKeyHash == "" || !s.generator.Verify(credential, u.APIKeyHash) {
			return nil, domain.ErrInvalidCredential
		}
		return u, nil
	}

	uid, err := token.ParseSessionToken(credential)
	if err != nil {
		return nil, domain.ErrInvalidCredential
	}
	st, err := s.tokens.GetByUID(ctx, uid)
	if err != nil {
		return nil, domain.ErrInvalidCredential
	}
	if !st.IsValid() || !s.generator.Verify(credential, st.TokenHash) {
		return nil, domain.ErrInvalidCredential
	}
	u, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return nil, domain.ErrInvalidCredential
	}
	return u, nil
}

// SendCode issues a 2FA code for the given email address. When an
// account owns the address the challenge is keyed by uid, otherwise by
// the address itself so pre-signup flows can verify it. The response
// does not reveal which case applied.
func (s *Service) SendCode(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.NewValidationError("email is required")
	}

	subject := email
	if u, err := s.users.GetByEmail(ctx, email); err == nil {
		subject = u.UID
	} else if !errors.IsNotFound(err) {
		return err
	}

	return s.send2FA(ctx, subject, email)
}

func (s *Service) send2FA(ctx context.Context, subject, email string) error {
	code, err := domain.GenerateNumericCode(6)
	if err != nil {
		return errors.NewInternalError("failed to generate code").WithCause(err)
	}

	ch, err := domain.NewTwoFAChallenge(subject, s.hasher.Hash(code), s.cfg.TwoFAExpiry())
	if err != nil {
		return errors.NewValidationError(err.Error())
	}
	if err := s.challenges.Upsert(ctx, ch); err != nil {
		return err
	}

	start := time.Now()
	sendErr := s.mailer.SendTwoFACode(email, code)
	s.latency.Record(time.Since(start))

	if sendErr != nil {
		s.log.Errorw("failed to send verification code", "subject", subject, "error", sendErr)
		return errors.NewExternalServiceError("failed to send verification code", 0).WithCause(sendErr)
	}
	return nil
}

// Verify2FA checks a code against the subject's pending challenge. The
// challenge is consumed on success and on expiry; the returned errors
// distinguish "expired" from "incorrect".
func (s *Service) Verify2FA(ctx context.Context, subject, code string) error {
	ch, err := s.challenges.GetBySubject(ctx, subject)
	if err != nil {
		if errors.IsNotFound(err) {
			return domain.ErrCodeIncorrect
		}
		return err
	}
	if !ch.Active {
		return domain.ErrCodeIncorrect
	}
	if ch.IsExpired() {
		if err := s.challenges.Deactivate(ctx, subject); err != nil {
			s.log.Warnw("failed to deactivate expired challenge", "subject", subject, "error", err)
		}
		return domain.ErrCodeExpired
	}
	if !s.hasher.Verify(code, ch.CodeHash) {
		return domain.ErrCodeIncorrect
	}
	if err := s.challenges.Deactivate(ctx, subject); err != nil {
		return err
	}
	return nil
}

// verifyForEmailSubject accepts codes issued against either the uid or
// the raw email, since the code may predate the account.
func (s *Service) verifyForEmailSubject(ctx context.Context, u *domain.User, code string) error {
	err := s.Verify2FA(ctx, u.UID, code)
	if err != nil && errors.IsUnauthorized(err) {
		if emailErr := s.Verify2FA(ctx, u.Email, code); emailErr == nil {
			return nil
		}
	}
	return err
}

// Activate marks the account behind the email as verified, gated on a
// valid 2FA code.
func (s *Service) Activate(ctx context.Context, email, code string) error {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.IsNotFound(err) {
			return domain.ErrCodeIncorrect
		}
		return err
	}
	if err := s.verifyForEmailSubject(ctx, u, code); err != nil {
		return err
	}
	if u.Activated {
		return nil
	}
	u.Activate()
	return s.users.Update(ctx, u)
}

// ResetPassword sets a new password for the account behind the email,
// gated on a valid 2FA code. The active session is revoked.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.IsNotFound(err) {
			return domain.ErrCodeIncorrect
		}
		return err
	}
	if err := s.verifyForEmailSubject(ctx, u, code); err != nil {
		return err
	}

	u.SetPasswordHash(s.hasher.Hash(newPassword))
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	return s.SignOut(ctx, u.UID)
}

// ChangePassword rotates the password after re-checking the current
// one. The current session stays valid.
func (s *Service) ChangePassword(ctx context.Context, uid, current, newPassword string) error {
	u, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, u.PasswordHash) {
		return domain.ErrInvalidCredential
	}
	u.SetPasswordHash(s.hasher.Hash(newPassword))
	return s.users.Update(ctx, u)
}

// GenerateAPIKey mints a new API key and returns the plaintext, which
// is shown once and never stored. Any previous key is revoked.
func (s *Service) GenerateAPIKey(ctx context.Context, uid string, live bool) (string, error) {
	u, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return "", err
	}
	plain, digest, err := s.generator.GenerateAPIKey(uid, live)
	if err != nil {
		return "", errors.NewInternalError("failed to generate API key").WithCause(err)
	}
	u.SetAPIKeyHash(digest)
	if err := s.users.Update(ctx, u); err != nil {
		return "", err
	}
	return plain, nil
}

// RevokeAPIKey drops the stored key digest. Idempotent.
func (s *Service) RevokeAPIKey(ctx context.Context, uid string) error {
	u, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return err
	}
	if u.APIKeyHash == "" {
		return nil
	}
	u.SetAPIKeyHash("")
	return s.users.Update(ctx, u)
}

func (s *Service) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	return s.users.GetByUID(ctx, uid)
}

// SetUsername renames the account. The unique index catches races the
// pre-check misses.
func (s *Service) SetUsername(ctx context.Context, uid, username string) error {
	username = strings.TrimSpace(username)
	if taken, err := s.users.ExistsByUsername(ctx, username); err != nil {
		return err
	} else if taken {
		return domain.ErrUsernameTaken
	}
	u, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return err
	}
	u.SetUsername(username)
	return s.users.Update(ctx, u)
}

// SetEmail changes the address and drops activation until the new
// address is verified.
func (s *Service) SetEmail(ctx context.Context, uid, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if taken, err := s.users.ExistsByEmail(ctx, email); err != nil {
		return err
	} else if taken {
		return domain.ErrEmailTaken
	}
	u, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return err
	}
	u.ChangeEmail(email)
	return s.users.Update(ctx, u)
}

func (s *Service) SetDisplayName(ctx context.Context, uid, name string) error {
	u, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return err
	}
	u.SetDisplayName(name)
	return s.users.Update(ctx, u)
}

// Delete removes the account and its identity rows. Payment records
// are purged separately by the payment service.
func (s *Service) Delete(ctx context.Context, uid string) error {
	if err := s.tokens.Deactivate(ctx, uid); err != nil && !errors.IsNotFound(err) {
		return err
	}
	if err := s.data.DeleteAll(ctx, uid); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, uid); err != nil {
		return err
	}
	s.log.Infow("user deleted", "uid", uid)
	return nil
}

// SetData writes a user-editable entry. Protected entries are written
// through SetProtectedData by internal callers only.
func (s *Service) SetData(ctx context.Context, uid, key string, value []byte) error {
	if key == "" {
		return errors.NewValidationError("key is required")
	}
	return s.data.Set(ctx, uid, key, value, false)
}

func (s *Service) SetProtectedData(ctx context.Context, uid, key string, value []byte) error {
	if key == "" {
		return errors.NewValidationError("key is required")
	}
	return s.data.Set(ctx, uid, key, value, true)
}

func (s *Service) GetData(ctx context.Context, uid, key string) ([]byte, error) {
	return s.data.Get(ctx, uid, key)
}

func (s *Service) ListData(ctx context.Context, uid string, protected bool) (map[string][]byte, error) {
	return s.data.List(ctx, uid, protected)
}

// DeleteData removes a user-editable entry; protected entries are not
// deletable through this path.
func (s *Service) DeleteData(ctx context.Context, uid, key string) error {
	return s.data.Delete(ctx, uid, key)
}

func (s *Service) lookupByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.users.GetByEmail(ctx, strings.ToLower(identifier))
	}
	return s.users.GetByUsername(ctx, identifier)
}

func (s *Service) delayFailure() {
	if d := s.latency.Median(); d > 0 {
		s.sleep(d)
	}
}
