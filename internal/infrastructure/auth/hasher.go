package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces keyed HMAC-SHA256 digests of credentials. The same
// hasher covers passwords, session tokens, and API keys so only digests
// ever reach storage.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Hash returns the hex-encoded HMAC-SHA256 of value under the
// configured secret.
func (h *Hasher) Hash(value string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares value against an expected digest in constant time.
func (h *Hasher) Verify(value, expectedDigest string) bool {
	computed := h.Hash(value)
	return hmac.Equal([]byte(computed), []byte(expectedDigest))
}
