package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"volt/internal/infrastructure/auth"
)

// API key prefixes. Live keys are issued against the production
// processor environment, test keys against the sandbox.
const (
	PrefixLive = "sk_live_"
	PrefixTest = "sk_test_"
)

const credentialRandomBytes = 32

// Generator mints opaque credentials with the owning uid embedded
// before the random part, so lookups go straight to the owner's record
// without a table scan. Only HMAC digests of credentials are stored.
type Generator struct {
	hasher *auth.Hasher
}

func NewGenerator(hasher *auth.Hasher) *Generator {
	return &Generator{hasher: hasher}
}

// GenerateSessionToken mints a session token "<uid>.<hex>" and returns
// the plaintext together with its storage digest.
func (g *Generator) GenerateSessionToken(uid string) (plain string, digest string, err error) {
	random, err := randomHex()
	if err != nil {
		return "", "", err
	}
	plain = uid + "." + random
	return plain, g.hasher.Hash(plain), nil
}

// GenerateAPIKey mints an API key "sk_live_<uid>.<hex>" (or sk_test_
// when live is false) and returns the plaintext with its digest.
func (g *Generator) GenerateAPIKey(uid string, live bool) (plain string, digest string, err error) {
	random, err := randomHex()
	if err != nil {
		return "", "", err
	}
	prefix := PrefixTest
	if live {
		prefix = PrefixLive
	}
	plain = prefix + uid + "." + random
	return plain, g.hasher.Hash(plain), nil
}

// Verify compares a presented credential against a stored digest in
// constant time.
func (g *Generator) Verify(plain, digest string) bool {
	return g.hasher.Verify(plain, digest)
}

// ParseSessionToken extracts the embedded uid from a session token.
func ParseSessionToken(token string) (uid string, err error) {
	uid, _, ok := splitCredential(token)
	if !ok {
		return "", fmt.Errorf("malformed session token")
	}
	return uid, nil
}

// ParseAPIKey extracts the embedded uid from an API key, checking the
// environment prefix.
func ParseAPIKey(key string) (uid string, err error) {
	rest, ok := strings.CutPrefix(key, PrefixLive)
	if !ok {
		rest, ok = strings.CutPrefix(key, PrefixTest)
	}
	if !ok {
		return "", fmt.Errorf("malformed API key")
	}
	uid, _, ok = splitCredential(rest)
	if !ok {
		return "", fmt.Errorf("malformed API key")
	}
	return uid, nil
}

// IsAPIKey reports whether a presented credential carries an API key
// prefix.
func IsAPIKey(credential string) bool {
	return strings.HasPrefix(credential, PrefixLive) || strings.HasPrefix(credential, PrefixTest)
}

func splitCredential(s string) (uid, random string, ok bool) {
	uid, random, found := strings.Cut(s, ".")
	if !found || uid == "" || len(random) != credentialRandomBytes*2 {
		return "", "", false
	}
	return uid, random, true
}

func randomHex() (string, error) {
	b := make([]byte, credentialRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
