// ABOUTME: Tests for encrypted payload helpers
// ABOUTME: Covers encrypt/decrypt round trips and graceful degradation on bad input

package auth

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/repo-relay/internal/codec"
)

func testCodec(t *testing.T) *codec.Codec {
	t.Helper()
	c, err := codec.New(bytes.Repeat([]byte{0x41}, codec.KeySize))
	require.NoError(t, err)
	return c
}

func TestEncryptResponse_RoundTrip(t *testing.T) {
	c := testCodec(t)

	data := map[string]any{"status": "success", "repos": []any{"relay", "gateway"}}
	envelope := EncryptResponse(c, data)

	token, ok := envelope["encrypted_data"].(string)
	require.True(t, ok)

	plaintext, err := c.Decrypt(token)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(plaintext), &got))
	assert.Equal(t, data, got)
}

func TestEncryptResponse_EmptyData(t *testing.T) {
	c := testCodec(t)

	envelope := EncryptResponse(c, nil)
	assert.Contains(t, envelope, "encrypted_data")
	assert.Nil(t, envelope["encrypted_data"])
}

func TestDecryptRequest_RoundTrip(t *testing.T) {
	c := testCodec(t)

	token, err := c.Encrypt(`{"chat_id":"123456","repo_name":"relay"}`)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{"encrypted_data": token, "timestamp": "1700000000"})
	require.NoError(t, err)

	payload := DecryptRequest(c, body)
	assert.Equal(t, "123456", payload["chat_id"])
	assert.Equal(t, "relay", payload["repo_name"])
}

func TestDecryptRequest_DegradesToEmpty(t *testing.T) {
	c := testCodec(t)

	wrongKey, err := codec.New(bytes.Repeat([]byte{0x42}, codec.KeySize))
	require.NoError(t, err)
	foreign, err := wrongKey.Encrypt(`{"chat_id":"123456"}`)
	require.NoError(t, err)
	foreignBody, _ := json.Marshal(map[string]any{"encrypted_data": foreign})

	notJSON, err := c.Encrypt("this is not json")
	require.NoError(t, err)
	notJSONBody, _ := json.Marshal(map[string]any{"encrypted_data": notJSON})

	tests := []struct {
		name string
		body []byte
	}{
		{"malformed json body", []byte(`{not json`)},
		{"no encrypted_data field", []byte(`{"other":"field"}`)},
		{"null encrypted_data", []byte(`{"encrypted_data":null}`)},
		{"undecryptable token", []byte(`{"encrypted_data":"garbage"}`)},
		{"wrong key", foreignBody},
		{"plaintext not json", notJSONBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := DecryptRequest(c, tt.body)
			require.NotNil(t, payload)
			assert.Empty(t, payload)
		})
	}
}
