package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	sig := Sign("topsecret", []byte(`{"event":"response.new"}`))

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	// 64 hex chars after the prefix.
	assert.Len(t, sig, len("sha256=")+64)

	// Deterministic for the same inputs.
	assert.Equal(t, sig, Sign("topsecret", []byte(`{"event":"response.new"}`)))
	// Sensitive to both secret and payload.
	assert.NotEqual(t, sig, Sign("other", []byte(`{"event":"response.new"}`)))
	assert.NotEqual(t, sig, Sign("topsecret", []byte(`{"event":"survey.closed"}`)))
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"event":"response.new","data":{}}`)
	sig := Sign("topsecret", payload)

	assert.True(t, Verify("topsecret", payload, sig))
	assert.False(t, Verify("wrong", payload, sig))
	assert.False(t, Verify("topsecret", []byte("tampered"), sig))
	assert.False(t, Verify("topsecret", payload, "sha256=deadbeef"))
}
