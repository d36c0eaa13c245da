// ABOUTME: Tests for HMAC request signing
// ABOUTME: Covers sign/verify symmetry and rejection of forged signatures

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSigner_SignVerify(t *testing.T) {
	s := NewSigner("test-api-key")

	body := []byte(`{"encrypted_data":"abc","timestamp":"1700000000"}`)
	sig := s.Sign(body, "1700000000")

	assert.True(t, s.Verify(body, "1700000000", sig))
}

func TestSigner_RejectsMutations(t *testing.T) {
	s := NewSigner("test-api-key")

	body := []byte(`{"chat_id":"123456"}`)
	sig := s.Sign(body, "1700000000")

	tests := []struct {
		name      string
		body      []byte
		timestamp string
		signature string
	}{
		{"body changed", []byte(`{"chat_id":"999999"}`), "1700000000", sig},
		{"timestamp changed", body, "1700000001", sig},
		{"signature truncated", body, "1700000000", sig[:len(sig)-2]},
		{"signature not hex", body, "1700000000", "zz" + sig[2:]},
		{"empty signature", body, "1700000000", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, s.Verify(tt.body, tt.timestamp, tt.signature))
		})
	}
}

func TestSigner_DifferentKeys(t *testing.T) {
	body := []byte("payload")
	sig := NewSigner("key-one").Sign(body, "1700000000")

	assert.False(t, NewSigner("key-two").Verify(body, "1700000000", sig))
}
