package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	payload := Canonical("1712000000", []byte(`{"sessionId":"abc"}`))
	sig := Sign("shared-key", payload)
	assert.True(t, Verify("shared-key", payload, sig))
	assert.False(t, Verify("other-key", payload, sig))
	assert.False(t, Verify("shared-key", payload+" ", sig))
}

func TestSignKnownVector(t *testing.T) {
	sig := Sign("s3cr3t", Canonical("1700000000", []byte(`{"a":1}`)))
	assert.Equal(t, "8dbbbbf4523b10bbb793e74d854144c45acccc2d233667b1c06b805b6ded8a84", sig)
}

func TestSignProducesLowercaseHex(t *testing.T) {
	sig := Sign("key", "1700000000.body")
	assert.Len(t, sig, 64)
	assert.Equal(t, strings.ToLower(sig), sig)
}

func TestCanonicalJoinsWithDot(t *testing.T) {
	assert.Equal(t, "1700000000.", Canonical("1700000000", nil))
	assert.Equal(t, `1700000000.{"a":1}`, Canonical("1700000000", []byte(`{"a":1}`)))
}

func TestConstantTimeEqualHex(t *testing.T) {
	sig := Sign("key", "payload")
	upper := strings.ToUpper(sig)

	assert.True(t, ConstantTimeEqualHex(sig, sig))
	// Casing differences vanish after hex decode.
	assert.True(t, ConstantTimeEqualHex(sig, upper))
	// Malformed hex never matches anything.
	assert.False(t, ConstantTimeEqualHex(sig, "zz"+sig[2:]))
	assert.False(t, ConstantTimeEqualHex("not-hex-at-all", "not-hex-at-all"))
	// Decoded length mismatch.
	assert.False(t, ConstantTimeEqualHex(sig, sig[:32]))
	assert.False(t, ConstantTimeEqualHex(sig, ""))
}
