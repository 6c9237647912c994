// Package signing computes and verifies webhook payload signatures.
// The signed bytes are the exact body transmitted on the wire; signing a
// re-serialized structure would break verification on ordering or
// whitespace differences.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header carries the payload signature on outbound requests.
const Header = "X-Webhook-Signature"

// Sign returns the hex-encoded HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload under secret.
// Comparison is constant-time.
func Verify(secret string, payload []byte, signature string) bool {
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
