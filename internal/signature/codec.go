// Package signature implements the symmetric request signing scheme used to
// authenticate automation callers at both the gateway and the core service.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Header names carried on every signed request, at both hops.
const (
	TimestampHeader = "X-Pulsecheck-Timestamp"
	SignatureHeader = "X-Pulsecheck-Signature"
)

// MaxSkewSeconds bounds the absolute difference between a request's embedded
// timestamp and the verifier's clock. The boundary is inclusive.
const MaxSkewSeconds = 300

// Canonical builds the exact byte sequence that is signed: the timestamp
// string, a dot, and the raw request body as received. The body must not be
// normalized or re-encoded before signing.
func Canonical(timestamp string, rawBody []byte) string {
	return timestamp + "." + string(rawBody)
}

// Sign computes the HMAC-SHA-256 of canonical under secret, rendered as
// lower-case hex.
func Sign(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature for canonical and compares it against
// candidateHex in constant time. Malformed hex is a verification failure,
// not an error.
func Verify(secret, canonical, candidateHex string) bool {
	return ConstantTimeEqualHex(Sign(secret, canonical), candidateHex)
}

// ConstantTimeEqualHex compares two hex-encoded digests without leaking
// timing correlated to the position of the first difference. Unequal decoded
// lengths short-circuit to false.
func ConstantTimeEqualHex(a, b string) bool {
	ab, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	bb, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	if len(ab) != len(bb) {
		return false
	}
	return subtle.ConstantTimeCompare(ab, bb) == 1
}
