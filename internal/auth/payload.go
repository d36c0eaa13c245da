// ABOUTME: Payload confidentiality helpers for the encrypted_data body convention
// ABOUTME: Encryption failures degrade to error bodies; decryption failures to empty payloads

package auth

import (
	"encoding/json"
	"log/slog"

	"github.com/2389/repo-relay/internal/codec"
)

// EncryptResponse wraps arbitrary response data as {"encrypted_data": token}.
// Empty data produces {"encrypted_data": null}; an encryption failure
// produces {"error": ...} rather than crashing the response path.
func EncryptResponse(c *codec.Codec, data any) map[string]any {
	if data == nil {
		return map[string]any{"encrypted_data": nil}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("marshaling response payload", "error", err)
		return map[string]any{"error": "failed to encrypt response data"}
	}
	token, err := c.Encrypt(string(raw))
	if err != nil {
		slog.Error("encrypting response payload", "error", err)
		return map[string]any{"error": "failed to encrypt response data"}
	}
	return map[string]any{"encrypted_data": token}
}

// DecryptRequest extracts and decrypts the encrypted_data field from a
// request body. Any failure (malformed JSON, missing field, decryption
// error) yields an empty map: callers treat that as "no payload", never
// as an error signal, so the transport stays resilient to garbled bodies.
func DecryptRequest(c *codec.Codec, body []byte) map[string]any {
	var envelope struct {
		EncryptedData string `json:"encrypted_data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.EncryptedData == "" {
		return map[string]any{}
	}

	plaintext, err := c.Decrypt(envelope.EncryptedData)
	if err != nil {
		slog.Warn("request payload decryption failed", "error", err)
		return map[string]any{}
	}

	payload := map[string]any{}
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		return map[string]any{}
	}
	return payload
}
