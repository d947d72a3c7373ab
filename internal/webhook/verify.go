package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verification is the outcome of the signature/idempotency guard
type Verification struct {
	OK          bool
	SignatureOK bool   // true only when an HMAC signature was present and valid
	Reason      string // unauthorized, bad_signature, missing_signature
}

// GuardConfig holds the inbound authentication settings
type GuardConfig struct {
	Secret        string
	AllowUnsigned bool
}

// Verify validates alert authenticity. Order matters: the shared-secret
// token is a fast reject before the body is even considered; a present
// but invalid HMAC signature is a hard reject, never silently stored.
func Verify(cfg GuardConfig, rawBody []byte, token, signatureHex string) Verification {
	if cfg.Secret != "" && token != cfg.Secret {
		return Verification{Reason: "unauthorized"}
	}

	if signatureHex != "" {
		if !VerifyHmacSHA256(rawBody, signatureHex, cfg.Secret) {
			return Verification{Reason: "bad_signature"}
		}
		return Verification{OK: true, SignatureOK: true}
	}

	if !cfg.AllowUnsigned {
		return Verification{Reason: "missing_signature"}
	}

	return Verification{OK: true}
}

// VerifyHmacSHA256 checks a hex-encoded HMAC-SHA256 signature over rawBody
// using constant-time comparison.
func VerifyHmacSHA256(rawBody []byte, signatureHex, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil {
		return false
	}

	return hmac.Equal(expected, got)
}

// SignHmacSHA256 returns the hex HMAC-SHA256 signature of body
func SignHmacSHA256(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// DeriveIdempotencyKey returns the SHA-256 hex digest of the raw payload,
// used as the dedupe key when the client did not supply one.
func DeriveIdempotencyKey(rawBody []byte) string {
	sum := sha256.Sum256(rawBody)
	return hex.EncodeToString(sum[:])
}
