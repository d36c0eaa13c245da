// ABOUTME: Authenticated symmetric encryption for request/response payloads
// ABOUTME: ChaCha20-Poly1305 with a fresh nonce per call, base64url transport encoding

package codec

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

// ErrDecryptFailed is returned when a token is malformed, was produced
// under a different key, or has been tampered with.
var ErrDecryptFailed = errors.New("payload decryption failed")

// Codec encrypts and decrypts payloads with a fixed process-wide key.
// Safe for concurrent use; the only state is the immutable key schedule.
type Codec struct {
	aead cipher.AEAD
}

// New creates a Codec from a raw 32-byte key.
func New(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// NewFromString creates a Codec from a base64-encoded key as stored in
// configuration. Both standard and URL-safe encodings are accepted.
func NewFromString(encoded string) (*Codec, error) {
	key, err := decodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	return New(key)
}

// Encrypt seals the plaintext under a fresh random nonce and returns
// base64url(nonce || ciphertext). Two calls with the same plaintext
// produce different tokens.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Any malformed, truncated,
// or tampered input yields ErrDecryptFailed rather than garbage output.
func (c *Codec) Decrypt(token string) (string, error) {
	raw, err := decodeBase64(token)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrDecryptFailed
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh random key, base64-encoded for storage in
// configuration.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// decodeBase64 accepts standard or URL-safe base64, with or without padding.
func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding, base64.StdEncoding,
		base64.RawURLEncoding, base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("invalid base64")
}
