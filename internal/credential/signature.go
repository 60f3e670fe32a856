// Package credential implements the pass signature and the compact QR
// payload bound to it. Signatures bind attendee identity, never entitlement:
// entitlement validity is always re-checked against the current record, so
// grants and revocations never require reissuing passes.
package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign derives the keyed signature for a canonical identity string.
// Deterministic, no I/O; the same (identity, secret) always yields the
// same hex digest.
func Sign(canonical, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature and compares in constant time.
// Fails closed: any malformed input yields false, never an error.
func VerifySignature(canonical, signature, secret string) bool {
	expected := Sign(canonical, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
