package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"

	"volt/internal/shared/errors"
)

// Processor egress addresses, published by the processor. Webhooks
// from any other source are rejected before the signature is checked.
var liveEgressIPs = []string{
	"34.232.58.13",
	"34.195.105.136",
	"34.237.3.244",
	"35.155.119.135",
	"52.11.166.252",
	"34.212.5.7",
}

var sandboxEgressIPs = []string{
	"34.194.127.46",
	"54.234.237.108",
	"3.208.120.145",
	"44.226.236.210",
	"44.241.183.62",
	"100.20.172.113",
}

// WebhookVerifier checks webhook authenticity: source IP against the
// processor's egress list, then an HMAC-SHA256 signature over
// "timestamp:body" in constant time.
type WebhookVerifier struct {
	secret  []byte
	allowed map[netip.Addr]bool
}

func NewWebhookVerifier(secret string, sandbox bool) *WebhookVerifier {
	ips := liveEgressIPs
	if sandbox {
		ips = sandboxEgressIPs
	}
	allowed := make(map[netip.Addr]bool, len(ips))
	for _, s := range ips {
		if addr, err := netip.ParseAddr(s); err == nil {
			allowed[addr] = true
		}
	}
	return &WebhookVerifier{
		secret:  []byte(secret),
		allowed: allowed,
	}
}

// VerifySource checks the caller's IP against the egress allow-list.
func (v *WebhookVerifier) VerifySource(remoteIP string) error {
	addr, err := netip.ParseAddr(remoteIP)
	if err != nil || !v.allowed[addr.Unmap()] {
		return errors.NewForbiddenError("webhook source not allowed")
	}
	return nil
}

// VerifySignature checks an "X-Signature: v1;<ts>;<hexhmac>" header
// against the raw body. The HMAC covers "<ts>:<body>".
func (v *WebhookVerifier) VerifySignature(signatureHeader string, body []byte) error {
	parts := strings.Split(signatureHeader, ";")
	if len(parts) != 3 || parts[0] != "v1" {
		return errors.NewUnauthorizedError("malformed webhook signature")
	}
	timestamp, signatureHex := parts[1], parts[2]
	if timestamp == "" {
		return errors.NewUnauthorizedError("malformed webhook signature")
	}

	presented, err := hex.DecodeString(signatureHex)
	if err != nil {
		return errors.NewUnauthorizedError("malformed webhook signature")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(body)

	if !hmac.Equal(presented, mac.Sum(nil)) {
		return errors.NewUnauthorizedError("webhook signature mismatch")
	}
	return nil
}

// Sign produces a signature header for the given timestamp and body.
// Used by tests and local tooling.
func (v *WebhookVerifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(body)
	return "v1;" + timestamp + ";" + hex.EncodeToString(mac.Sum(nil))
}
